package core

import "fmt"

// FatalError is returned by Registry operations that spec.md §7
// classifies as configuration-fatal: capacity overflow, duplicate ID,
// or malformed finalization. The caller (cmd/clicknode) is expected to
// log this at Fatal level and trigger the watchdog-reset primitive;
// Registry itself never panics or resets.
type FatalError struct {
	msg string
}

func (e *FatalError) Error() string { return e.msg }

func fatalf(format string, args ...any) *FatalError {
	return &FatalError{msg: fmt.Sprintf(format, args...)}
}

// Registry is the fixed-capacity store of Actuators, Clickables and
// Indicators, with id->index maps, assembled once at boot by the
// Configuration surface and never mutated in shape afterward.
type Registry struct {
	actuatorCap  int
	clickableCap int
	indicatorCap int

	actuators  []*Actuator
	clickables []*Clickable
	indicators []*Indicator

	actuatorByID  map[uint8]int
	clickableByID map[uint8]int

	autoOffActuators []int // indices into actuators with HasAutoOff(), precomputed by Finalize

	finalized bool
}

// NewRegistry allocates a Registry with the given compile-time upper
// bounds on actuator/clickable/indicator count.
func NewRegistry(actuatorCap, clickableCap, indicatorCap int) *Registry {
	return &Registry{
		actuatorCap:   actuatorCap,
		clickableCap:  clickableCap,
		indicatorCap:  indicatorCap,
		actuators:     make([]*Actuator, 0, actuatorCap),
		clickables:    make([]*Clickable, 0, clickableCap),
		indicators:    make([]*Indicator, 0, indicatorCap),
		actuatorByID:  make(map[uint8]int, actuatorCap),
		clickableByID: make(map[uint8]int, clickableCap),
	}
}

// AddActuator constructs and stores an actuator. id must be >0 and
// unique. Returns its registry index, or a *FatalError on capacity
// overflow or duplicate id.
func (r *Registry) AddActuator(id uint8, pin PinWriter, defaultState bool, switchDebounceMS, autoOffMS uint32, protected bool) (int, error) {
	if id == 0 {
		return -1, fatalf("actuator id must be > 0")
	}
	if len(r.actuators) >= r.actuatorCap {
		return -1, fatalf("actuator capacity exceeded (cap=%d)", r.actuatorCap)
	}
	if _, dup := r.actuatorByID[id]; dup {
		return -1, fatalf("duplicate actuator id %d", id)
	}
	idx := len(r.actuators)
	r.actuators = append(r.actuators, NewActuator(id, pin, defaultState, switchDebounceMS, autoOffMS, protected))
	r.actuatorByID[id] = idx
	return idx, nil
}

// AddClickable constructs and stores a clickable. cfg.ID must be >0
// and unique.
func (r *Registry) AddClickable(cfg ClickableConfig) (int, error) {
	if cfg.ID == 0 {
		return -1, fatalf("clickable id must be > 0")
	}
	if len(r.clickables) >= r.clickableCap {
		return -1, fatalf("clickable capacity exceeded (cap=%d)", r.clickableCap)
	}
	if _, dup := r.clickableByID[cfg.ID]; dup {
		return -1, fatalf("duplicate clickable id %d", cfg.ID)
	}
	idx := len(r.clickables)
	r.clickables = append(r.clickables, newClickable(idx, cfg))
	r.clickableByID[cfg.ID] = idx
	return idx, nil
}

// AddIndicator constructs and stores an indicator. Indicators have no
// user-facing id; they are addressed only by registry index.
func (r *Registry) AddIndicator(cfg IndicatorConfig) (int, error) {
	if len(r.indicators) >= r.indicatorCap {
		return -1, fatalf("indicator capacity exceeded (cap=%d)", r.indicatorCap)
	}
	idx := len(r.indicators)
	r.indicators = append(r.indicators, newIndicator(cfg))
	return idx, nil
}

// Finalize runs Clickable.check() over every clickable, precomputes the
// auto-off actuator subset, and detects duplicate IDs that slipped past
// the add-time check (map size < slice length). Must be called exactly
// once, after all boot-time Add* calls and before the scheduler starts.
func (r *Registry) Finalize() error {
	if r.finalized {
		return fatalf("registry already finalized")
	}
	if len(r.actuatorByID) != len(r.actuators) {
		return fatalf("duplicate actuator id detected at finalize (ids=%d slots=%d)", len(r.actuatorByID), len(r.actuators))
	}
	if len(r.clickableByID) != len(r.clickables) {
		return fatalf("duplicate clickable id detected at finalize (ids=%d slots=%d)", len(r.clickableByID), len(r.clickables))
	}
	for _, c := range r.clickables {
		c.check()
		if !c.valid {
			return fatalf("clickable id %d is not valid: needs a capability and at least one bound actuator", c.id)
		}
	}
	r.autoOffActuators = r.autoOffActuators[:0]
	for i, a := range r.actuators {
		if a.HasAutoOff() {
			r.autoOffActuators = append(r.autoOffActuators, i)
		}
	}
	r.finalized = true
	return nil
}

// Actuators returns the backing actuator slice, indexed by registry index.
func (r *Registry) Actuators() []*Actuator { return r.actuators }

// Clickables returns the backing clickable slice, indexed by registry index.
func (r *Registry) Clickables() []*Clickable { return r.clickables }

// Indicators returns the backing indicator slice.
func (r *Registry) Indicators() []*Indicator { return r.indicators }

// AutoOffActuatorIndices returns the precomputed subset of actuator
// indices carrying an auto-off timer, for the scheduler's sweep.
func (r *Registry) AutoOffActuatorIndices() []int { return r.autoOffActuators }

// ActuatorIndexByID resolves a wire actuator id to its registry index.
func (r *Registry) ActuatorIndexByID(id uint8) (int, bool) {
	idx, ok := r.actuatorByID[id]
	return idx, ok
}

// ClickableIndexByID resolves a wire clickable id to its registry index.
func (r *Registry) ClickableIndexByID(id uint8) (int, bool) {
	idx, ok := r.clickableByID[id]
	return idx, ok
}

// ActuatorIDs returns every actuator id, in registry order, for
// DEVICE_DETAILS.
func (r *Registry) ActuatorIDs() []uint8 {
	ids := make([]uint8, len(r.actuators))
	for i, a := range r.actuators {
		ids[i] = a.ID()
	}
	return ids
}

// ClickableIDs returns every clickable id, in registry order, for
// DEVICE_DETAILS.
func (r *Registry) ClickableIDs() []uint8 {
	ids := make([]uint8, len(r.clickables))
	for i, c := range r.clickables {
		ids[i] = c.ID()
	}
	return ids
}

// ActuatorStates returns the current state vector, in registry order,
// for ACTUATORS_STATE.
func (r *Registry) ActuatorStates() []uint8 {
	states := make([]uint8, len(r.actuators))
	for i, a := range r.actuators {
		if a.State() {
			states[i] = 1
		}
	}
	return states
}

// TurnOffUnprotectedActuators turns off every non-protected actuator in
// the registry. Backs the NORMAL super-long click action (spec.md
// §4.3) and explicit FAILOVER handling.
func (r *Registry) TurnOffUnprotectedActuators(now uint32) bool {
	changed := false
	for _, a := range r.actuators {
		if a.Protected() {
			continue
		}
		if a.SetState(now, false) {
			changed = true
		}
	}
	return changed
}

// RefreshIndicators refreshes every indicator against the current
// actuator states, returning whether any indicator output changed.
func (r *Registry) RefreshIndicators() bool {
	changed := false
	for _, ind := range r.indicators {
		if ind.Refresh(r.actuators) {
			changed = true
		}
	}
	return changed
}

// CheckAutoOff runs the auto-off sweep over the precomputed subset of
// actuators carrying a timer, returning whether any actuator changed.
func (r *Registry) CheckAutoOff(now uint32) bool {
	changed := false
	for _, idx := range r.autoOffActuators {
		if r.actuators[idx].CheckAutoOff(now) {
			changed = true
		}
	}
	return changed
}
