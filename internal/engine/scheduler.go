// Package engine wires internal/core and internal/serial together into
// the Scheduler super-loop of spec.md §4.9. It exists as a separate
// package, above both, because Scheduler needs core.Registry/
// core.NetworkClicks and serial.Link/serial.Dispatcher simultaneously,
// and serial already depends on core.
package engine

import (
	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/logging"
	"github.com/dbehnke/clicknode/internal/serial"
	"github.com/dbehnke/clicknode/internal/wire"
)

// Scheduler orchestrates every component each tick: input polling,
// inbound drain, timer checks, and state-broadcast gating, per spec.md
// §4.9.
type Scheduler struct {
	deviceName string
	tunables   Tunables

	timeKeeper    *core.TimeKeeper
	registry      *core.Registry
	networkClicks *core.NetworkClicks
	link          *serial.Link
	dispatcher    *serial.Dispatcher
	debug         logging.DebugSink

	mustSendState bool
	mustCheckNet  bool

	lastNetCheckTime     uint32
	lastAutoOffCheckTime uint32
	haveCheckedTimes     bool
}

// Deps bundles everything Scheduler needs, assembled once at boot by
// cmd/clicknode (or cmd/simulate) after Registry.Finalize.
type Deps struct {
	DeviceName    string
	Tunables      Tunables
	TimeKeeper    *core.TimeKeeper
	Registry      *core.Registry
	NetworkClicks *core.NetworkClicks
	Link          *serial.Link
	Dispatcher    *serial.Dispatcher
	Debug         logging.DebugSink
}

// NewScheduler builds a Scheduler from deps.
func NewScheduler(deps Deps) *Scheduler {
	return &Scheduler{
		deviceName:    deps.DeviceName,
		tunables:      deps.Tunables,
		timeKeeper:    deps.TimeKeeper,
		registry:      deps.Registry,
		networkClicks: deps.NetworkClicks,
		link:          deps.Link,
		dispatcher:    deps.Dispatcher,
		debug:         deps.Debug,
	}
}

// Setup runs the one-shot boot sequence of spec.md §4.9: cache the
// initial time and emit BOOT. Registry.Finalize and serial port opening
// are expected to have already happened in the caller (cmd/clicknode),
// since those are configuration-surface concerns, not scheduler ones.
func (s *Scheduler) Setup() {
	s.timeKeeper.Update()
	_ = s.link.SendBoot(s.timeKeeper.Now())
}

// Tick runs exactly one super-loop iteration.
func (s *Scheduler) Tick() {
	s.timeKeeper.Update()
	now := s.timeKeeper.Now()

	s.pollLinkKeepAlive(now)
	s.pollClickables(now)
	s.drainInbound(now)
	s.checkNetworkClickTimers(now)
	s.sweepAutoOff(now)
	s.gateBroadcast(now)
}

// pollLinkKeepAlive emits PING whenever the link has been idle for the
// configured interval (spec.md §4.9 step 2, §6 "Keep-alive").
func (s *Scheduler) pollLinkKeepAlive(now uint32) {
	if s.link.CanPing(now) {
		_ = s.link.SendPing(now)
	}
}

// pollClickables runs click_detection on every clickable and dispatches
// local or network actions by click kind (spec.md §4.9 step 2).
func (s *Scheduler) pollClickables(now uint32) {
	clickables := s.registry.Clickables()
	actuators := s.registry.Actuators()
	for _, c := range clickables {
		switch c.Detect(now) {
		case core.ShortClick, core.ShortClickQuick:
			if c.ShortClick(now, actuators) {
				s.mustSendState = true
			}
		case core.LongClick:
			s.handleLongClick(now, c, actuators)
		case core.SuperLongClick:
			s.handleSuperLongClick(now, c, actuators)
		}
	}
}

func (s *Scheduler) handleLongClick(now uint32, c *core.Clickable, actuators []*core.Actuator) {
	if c.NetLongOK() && s.link.IsConnected(now) {
		s.networkClicks.Request(now, c.Index(), core.ClickKindLong)
		s.mustCheckNet = true
		return
	}
	if !c.NetLongOK() || c.LongFallback() == core.LocalFallback {
		if c.LongClick(now, actuators) {
			s.mustSendState = true
		}
	}
}

func (s *Scheduler) handleSuperLongClick(now uint32, c *core.Clickable, actuators []*core.Actuator) {
	if c.NetSuperLongOK() && s.link.IsConnected(now) {
		s.networkClicks.Request(now, c.Index(), core.ClickKindSuperLong)
		s.mustCheckNet = true
		return
	}
	if c.NetSuperLongOK() && c.SuperLongFallback() != core.LocalFallback {
		return
	}
	changed := false
	if c.SuperLongKindOf() == core.SuperLongSelective {
		changed = c.SuperLongClickSelective(now, actuators)
	} else {
		changed = s.registry.TurnOffUnprotectedActuators(now)
	}
	if changed {
		s.mustSendState = true
	}
}

// drainInbound drains every buffered inbound frame and ORs the
// dispatcher's flags into the scheduler's pending-work bits (spec.md
// §4.9 step 3).
func (s *Scheduler) drainInbound(now uint32) {
	s.link.Drain(now, func(rec wire.Record) {
		result := s.dispatcher.Dispatch(now, rec)
		if result.StateChanged {
			s.mustSendState = true
		}
		if result.NetHandled {
			s.mustCheckNet = true
		}
	})
}

// checkNetworkClickTimers runs NetworkClicks.CheckAll at the configured
// interval when there is work pending (spec.md §4.9 step 4).
func (s *Scheduler) checkNetworkClickTimers(now uint32) {
	if !s.mustCheckNet {
		return
	}
	if s.haveCheckedTimes && core.Elapsed(now, s.lastNetCheckTime) < s.tunables.NetworkClickCheckIntervalMS {
		return
	}
	s.lastNetCheckTime = now
	s.haveCheckedTimes = true
	if s.networkClicks.CheckAll(now, false) {
		s.mustSendState = true
	}
	s.mustCheckNet = s.networkClicks.AnyPending()
}

// sweepAutoOff runs the auto-off sweep at the configured interval
// (spec.md §4.9 step 5).
func (s *Scheduler) sweepAutoOff(now uint32) {
	if core.Elapsed(now, s.lastAutoOffCheckTime) < s.tunables.ActuatorsAutoOffCheckIntervalMS {
		return
	}
	s.lastAutoOffCheckTime = now
	if s.registry.CheckAutoOff(now) {
		s.mustSendState = true
	}
}

// gateBroadcast emits ACTUATORS_STATE and refreshes indicators only
// once the post-receive delay has elapsed, preventing an ACK storm
// after a burst of inbound SET commands (spec.md §4.9 step 6).
func (s *Scheduler) gateBroadcast(now uint32) {
	if !s.mustSendState {
		return
	}
	if core.Elapsed(now, s.link.LastReceivedValidTime()) <= s.tunables.DelayAfterReceiveMS {
		return
	}
	_ = s.link.Send(now, wire.ActuatorsStateRecord(s.registry.ActuatorStates()))
	s.registry.RefreshIndicators()
	s.mustSendState = false
}
