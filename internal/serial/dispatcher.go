package serial

import (
	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/wire"
)

// Result carries the side-effect flags spec.md §4.8 requires the
// Dispatcher to report back to the scheduler.
type Result struct {
	StateChanged bool
	NetHandled   bool
}

// Dispatcher decodes inbound command records and mutates
// Actuators/NetworkClicks/outbound emitter accordingly, per spec.md
// §4.8's command table. Unknown commands, missing/invalid ids and
// enum values are silently rejected per validation-by-convention: a
// record carrying the reserved-invalid value 0 for an id/command/kind
// is dropped rather than erroring.
type Dispatcher struct {
	registry      *core.Registry
	networkClicks *core.NetworkClicks
	link          *Link
	deviceName    string
	onUnknown     func(cmd wire.Command)
}

// NewDispatcher builds a Dispatcher wired to the given device state.
func NewDispatcher(registry *core.Registry, networkClicks *core.NetworkClicks, link *Link, deviceName string) *Dispatcher {
	return &Dispatcher{registry: registry, networkClicks: networkClicks, link: link, deviceName: deviceName}
}

// OnUnknownCommand registers a callback for the "other" row of spec.md
// §4.8's table ("log unknown"). Optional.
func (d *Dispatcher) OnUnknownCommand(fn func(cmd wire.Command)) { d.onUnknown = fn }

// Dispatch decodes rec and applies its effect, returning the flags the
// scheduler ORs into must_send_state / must_check_net.
func (d *Dispatcher) Dispatch(now uint32, rec wire.Record) Result {
	switch rec.P {
	case wire.RequestDetails:
		d.emitDeviceDetails(now)
		return Result{}
	case wire.RequestState:
		d.emitActuatorsState(now)
		return Result{}
	case wire.SetState:
		return Result{StateChanged: d.handleSetState(now, rec)}
	case wire.SetSingleActuator:
		return Result{StateChanged: d.handleSetSingleActuator(now, rec)}
	case wire.NetworkClickAck:
		return d.handleNetworkClickAck(now, rec)
	case wire.Failover:
		return Result{StateChanged: d.networkClicks.CheckAll(now, true)}
	case wire.FailoverClick:
		return d.handleFailoverClick(now, rec)
	case wire.Boot:
		d.emitDeviceDetails(now)
		d.emitActuatorsState(now)
		return Result{}
	case wire.Ping:
		return Result{}
	default:
		if d.onUnknown != nil {
			d.onUnknown(rec.P)
		}
		return Result{}
	}
}

func (d *Dispatcher) emitDeviceDetails(now uint32) {
	_ = d.link.Send(now, wire.DeviceDetailsRecord(d.deviceName, d.registry.ActuatorIDs(), d.registry.ClickableIDs()))
}

func (d *Dispatcher) emitActuatorsState(now uint32) {
	_ = d.link.Send(now, wire.ActuatorsStateRecord(d.registry.ActuatorStates()))
}

// handleSetState applies a full state vector. spec.md's Open Question
// (a): a vector whose length does not match the actuator count is
// rejected silently — this is the normative policy, not an error path.
func (d *Dispatcher) handleSetState(now uint32, rec wire.Record) bool {
	actuators := d.registry.Actuators()
	if len(rec.S) != len(actuators) {
		return false
	}
	changed := false
	for i, v := range rec.S {
		if v != 0 && v != 1 {
			continue
		}
		if actuators[i].SetState(now, v == 1) {
			changed = true
		}
	}
	return changed
}

func (d *Dispatcher) handleSetSingleActuator(now uint32, rec wire.Record) bool {
	if rec.I == 0 || len(rec.S) != 1 || (rec.S[0] != 0 && rec.S[0] != 1) {
		return false
	}
	idx, ok := d.registry.ActuatorIndexByID(rec.I)
	if !ok {
		return false
	}
	return d.registry.Actuators()[idx].SetState(now, rec.S[0] == 1)
}

func (d *Dispatcher) handleNetworkClickAck(now uint32, rec wire.Record) Result {
	idx, kind, ok := d.resolveClickTarget(rec)
	if !ok {
		return Result{}
	}
	if d.networkClicks.IsExpired(now, idx, kind) {
		return Result{}
	}
	d.networkClicks.Confirm(idx, kind)
	return Result{StateChanged: true, NetHandled: true}
}

func (d *Dispatcher) handleFailoverClick(now uint32, rec wire.Record) Result {
	idx, kind, ok := d.resolveClickTarget(rec)
	if !ok {
		return Result{}
	}
	changed := d.networkClicks.CheckOne(now, idx, kind, true)
	return Result{StateChanged: changed, NetHandled: true}
}

// resolveClickTarget validates and resolves the (i, t) pair shared by
// NETWORK_CLICK_ACK and FAILOVER_CLICK.
func (d *Dispatcher) resolveClickTarget(rec wire.Record) (int, core.ClickKind, bool) {
	if rec.I == 0 || rec.T == 0 {
		return 0, 0, false
	}
	idx, ok := d.registry.ClickableIndexByID(rec.I)
	if !ok {
		return 0, 0, false
	}
	switch wire.ClickKindWire(rec.T) {
	case wire.WireClickLong:
		return idx, core.ClickKindLong, true
	case wire.WireClickSuperLong:
		return idx, core.ClickKindSuperLong, true
	default:
		return 0, 0, false
	}
}
