package core

// ClickKind distinguishes the two click kinds that can be routed over
// the network: LONG and SUPER_LONG. Matches the wire "t" field.
type ClickKind uint8

const (
	ClickKindLong      ClickKind = 1
	ClickKindSuperLong ClickKind = 2
)

// NetworkClickEmitter is the outbound half of NetworkClicks: it is how
// request()/confirm() put NETWORK_CLICK records on the wire. Backed by
// internal/serial.Link in production.
type NetworkClickEmitter interface {
	EmitNetworkClick(clickableID uint8, kind ClickKind, confirm bool)
}

// pendingEntry is one outstanding network-click request.
type pendingEntry struct {
	clickableIndex int
	requestTime    uint32
}

// NetworkClicks tracks pending long/super-long click requests, enforces
// a per-request timeout, and handles ACK confirmation, explicit
// failover, and local fallback execution. Grounded on the teacher's
// KeyingTracker timer-queue delete-then-advance idiom.
type NetworkClicks struct {
	timeoutMS uint32
	emitter   NetworkClickEmitter
	registry  *Registry

	pendingLong      map[int]pendingEntry
	pendingSuperLong map[int]pendingEntry
}

// NewNetworkClicks builds a NetworkClicks coordinator. capacity bounds
// both maps, matching the clickable count per spec.md §3.
func NewNetworkClicks(timeoutMS uint32, capacity int, emitter NetworkClickEmitter, registry *Registry) *NetworkClicks {
	return &NetworkClicks{
		timeoutMS:        timeoutMS,
		emitter:          emitter,
		registry:         registry,
		pendingLong:      make(map[int]pendingEntry, capacity),
		pendingSuperLong: make(map[int]pendingEntry, capacity),
	}
}

func (nc *NetworkClicks) mapFor(kind ClickKind) map[int]pendingEntry {
	if kind == ClickKindSuperLong {
		return nc.pendingSuperLong
	}
	return nc.pendingLong
}

// Request emits the outbound NETWORK_CLICK (c=0) and records the
// pending entry keyed by clickable index.
func (nc *NetworkClicks) Request(now uint32, clickableIndex int, kind ClickKind) {
	clickableID := nc.registry.Clickables()[clickableIndex].ID()
	nc.emitter.EmitNetworkClick(clickableID, kind, false)
	nc.mapFor(kind)[clickableIndex] = pendingEntry{clickableIndex: clickableIndex, requestTime: now}
}

// Confirm emits the outbound NETWORK_CLICK (c=1), removes the pending
// entry, and reports whether any entry remains pending anywhere.
func (nc *NetworkClicks) Confirm(clickableIndex int, kind ClickKind) bool {
	clickableID := nc.registry.Clickables()[clickableIndex].ID()
	nc.emitter.EmitNetworkClick(clickableID, kind, true)
	delete(nc.mapFor(kind), clickableIndex)
	return nc.AnyPending()
}

// AnyPending reports whether either map has an outstanding entry.
func (nc *NetworkClicks) AnyPending() bool {
	return len(nc.pendingLong) > 0 || len(nc.pendingSuperLong) > 0
}

// IsExpired reports whether the (clickable, kind) entry is missing or
// past its deadline. A missing entry is reported expired (nothing to
// wait for). An expired entry is removed as a side effect.
func (nc *NetworkClicks) IsExpired(now uint32, clickableIndex int, kind ClickKind) bool {
	m := nc.mapFor(kind)
	entry, ok := m[clickableIndex]
	if !ok {
		return true
	}
	if Elapsed(now, entry.requestTime) > nc.timeoutMS {
		delete(m, clickableIndex)
		return true
	}
	return false
}

// checkOne applies the deadline/failover/fallback logic to a single
// (clickableIndex, kind) entry if present. An entry that is expired or
// force-failed-over is removed whether or not a local fallback runs; an
// entry still within its deadline is left pending. Returns whether a
// local actuator state change occurred.
func (nc *NetworkClicks) checkOne(now uint32, clickableIndex int, kind ClickKind, forceFailover bool, m map[int]pendingEntry) bool {
	entry, ok := m[clickableIndex]
	if !ok {
		return false
	}
	expired := Elapsed(now, entry.requestTime) > nc.timeoutMS
	if !forceFailover && !expired {
		return false
	}
	delete(m, clickableIndex)

	click := nc.registry.Clickables()[clickableIndex]
	fallback := click.LongFallback()
	if kind == ClickKindSuperLong {
		fallback = click.SuperLongFallback()
	}
	if fallback != LocalFallback {
		return false
	}
	actuators := nc.registry.Actuators()
	if kind == ClickKindSuperLong {
		if click.SuperLongKindOf() == SuperLongSelective {
			return click.SuperLongClickSelective(now, actuators)
		}
		return nc.registry.TurnOffUnprotectedActuators(now)
	}
	return click.LongClick(now, actuators)
}

// CheckOne is the exported entry point for Dispatcher's FAILOVER_CLICK
// handling and the scheduler's per-tick timeout sweep.
func (nc *NetworkClicks) CheckOne(now uint32, clickableIndex int, kind ClickKind, forceFailover bool) bool {
	return nc.checkOne(now, clickableIndex, kind, forceFailover, nc.mapFor(kind))
}

// CheckAll applies checkOne semantics to every pending entry in both
// maps. Iteration tolerates concurrent removal by collecting the
// indices to visit before mutating either map, mirroring the teacher's
// rebuild-the-slice idiom applied to a map.
func (nc *NetworkClicks) CheckAll(now uint32, forceFailover bool) bool {
	changed := false
	for _, idx := range pendingIndices(nc.pendingLong) {
		if nc.checkOne(now, idx, ClickKindLong, forceFailover, nc.pendingLong) {
			changed = true
		}
	}
	for _, idx := range pendingIndices(nc.pendingSuperLong) {
		if nc.checkOne(now, idx, ClickKindSuperLong, forceFailover, nc.pendingSuperLong) {
			changed = true
		}
	}
	return changed
}

func pendingIndices(m map[int]pendingEntry) []int {
	indices := make([]int, 0, len(m))
	for idx := range m {
		indices = append(indices, idx)
	}
	return indices
}
