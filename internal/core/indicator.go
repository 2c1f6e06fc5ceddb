package core

// IndicatorMode selects how an Indicator aggregates its controlled
// actuators into one boolean.
type IndicatorMode uint8

const (
	IndicatorAny IndicatorMode = iota
	IndicatorAll
	IndicatorMajority
)

// Indicator aggregates N actuator states into a boolean and drives an
// output pin, refreshed only when the scheduler broadcasts new state.
type Indicator struct {
	pin        PinWriter
	controlled []int
	mode       IndicatorMode
	state      bool
	primed     bool
}

// IndicatorConfig carries the boot-time definition of one Indicator.
type IndicatorConfig struct {
	Pin        PinWriter
	Controlled []int
	Mode       IndicatorMode
}

func newIndicator(cfg IndicatorConfig) *Indicator {
	return &Indicator{pin: cfg.Pin, controlled: cfg.Controlled, mode: cfg.Mode}
}

// State returns the last computed/written value.
func (ind *Indicator) State() bool { return ind.state }

// Refresh recomputes the aggregate over actuators and writes the output
// pin only when the computed value differs from the cached one (or on
// the first call, to apply the boot-time default).
func (ind *Indicator) Refresh(actuators []*Actuator) bool {
	computed := ind.compute(actuators)
	if ind.primed && computed == ind.state {
		return false
	}
	ind.primed = true
	ind.state = computed
	ind.pin.Write(computed)
	return true
}

func (ind *Indicator) compute(actuators []*Actuator) bool {
	switch ind.mode {
	case IndicatorAny:
		for _, idx := range ind.controlled {
			if actuators[idx].State() {
				return true
			}
		}
		return false
	case IndicatorAll:
		for _, idx := range ind.controlled {
			if !actuators[idx].State() {
				return false
			}
		}
		return true
	default: // IndicatorMajority
		total := len(ind.controlled)
		if total == 0 {
			return false
		}
		return countOn(actuators, ind.controlled)*2 > total
	}
}
