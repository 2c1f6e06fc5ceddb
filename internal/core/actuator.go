package core

// PinWriter is the hardware output half of an Actuator's handle. The
// production wiring is internal/hal's GPIO primitive; tests use a fake
// that records writes.
type PinWriter interface {
	Write(level bool)
}

// Actuator is one digital output with on/off state, optional auto-off
// timer, optional protected flag, and switching debounce.
type Actuator struct {
	id               uint8
	pin              PinWriter
	state            bool
	defaultState     bool
	lastSwitchTime   uint32
	hasSwitched      bool // false until the first applied switch; no debounce window before it
	switchDebounceMS uint32
	autoOffMS        uint32 // 0 disables auto-off
	protected        bool
}

// NewActuator constructs an actuator and applies defaultState to the
// hardware output immediately, per spec.md §3's boot lifecycle.
func NewActuator(id uint8, pin PinWriter, defaultState bool, switchDebounceMS, autoOffMS uint32, protected bool) *Actuator {
	a := &Actuator{
		id:               id,
		pin:              pin,
		defaultState:     defaultState,
		switchDebounceMS: switchDebounceMS,
		autoOffMS:        autoOffMS,
		protected:        protected,
	}
	a.pin.Write(defaultState)
	a.state = defaultState
	return a
}

// ID returns the actuator's stable small integer id.
func (a *Actuator) ID() uint8 { return a.id }

// State returns the last successfully applied hardware output level.
func (a *Actuator) State() bool { return a.state }

// DefaultState returns the boot-time default level.
func (a *Actuator) DefaultState() bool { return a.defaultState }

// Protected reports whether this actuator is exempt from
// turn-off-all-unprotected operations.
func (a *Actuator) Protected() bool { return a.protected }

// HasAutoOff reports whether an auto-off timer is configured.
func (a *Actuator) HasAutoOff() bool { return a.autoOffMS > 0 }

// SetState writes target to the hardware output unless it is a no-op or
// the switch debounce window has not elapsed. Returns whether a change
// was applied.
func (a *Actuator) SetState(now uint32, target bool) bool {
	if target == a.state {
		return false
	}
	if a.hasSwitched && Elapsed(now, a.lastSwitchTime) < a.switchDebounceMS {
		return false
	}
	a.pin.Write(target)
	a.state = target
	a.lastSwitchTime = now
	a.hasSwitched = true
	return true
}

// ToggleState flips the current state, subject to the same debounce.
func (a *Actuator) ToggleState(now uint32) bool {
	return a.SetState(now, !a.state)
}

// CheckAutoOff turns the actuator off if it has been on for at least
// autoOffMS since its last switch. Intended to be called from the
// scheduler's periodic auto-off sweep, not every tick.
func (a *Actuator) CheckAutoOff(now uint32) bool {
	if !a.state || a.autoOffMS == 0 {
		return false
	}
	if Elapsed(now, a.lastSwitchTime) < a.autoOffMS {
		return false
	}
	return a.SetState(now, false)
}
