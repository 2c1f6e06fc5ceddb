package core

// PinReader is the hardware input half of a Clickable's handle.
type PinReader interface {
	Read() bool
}

// ClickResult is the event a single Clickable.Detect call may emit.
type ClickResult uint8

const (
	NoClick ClickResult = iota
	NoClickKeepingClicked
	NoClickNotShortClickable
	ShortClick
	ShortClickQuick
	LongClick
	SuperLongClick
)

func (r ClickResult) String() string {
	switch r {
	case NoClick:
		return "NO_CLICK"
	case NoClickKeepingClicked:
		return "NO_CLICK_KEEPING_CLICKED"
	case NoClickNotShortClickable:
		return "NO_CLICK_NOT_SHORT_CLICKABLE"
	case ShortClick:
		return "SHORT_CLICK"
	case ShortClickQuick:
		return "SHORT_CLICK_QUICK"
	case LongClick:
		return "LONG_CLICK"
	case SuperLongClick:
		return "SUPER_LONG_CLICK"
	default:
		return "UNKNOWN"
	}
}

// fsmState is the Clickable's 4-state input FSM.
type fsmState uint8

const (
	fsmIdle fsmState = iota
	fsmDebouncing
	fsmPressed
	fsmReleased
)

// LastAction tracks the highest click kind already fired for the
// current press, so a held button cannot re-fire LONG after SUPER_LONG
// has already fired, and so release doesn't double-fire SHORT.
type LastAction uint8

const (
	ActionNone LastAction = iota
	ActionLong
	ActionSuperLong
)

// LongKind selects the local long-click action.
type LongKind uint8

const (
	LongNormal LongKind = iota
	LongOnOnly
	LongOffOnly
)

// SuperLongKind selects the local super-long-click action.
type SuperLongKind uint8

const (
	SuperLongNormal SuperLongKind = iota
	SuperLongSelective
)

// FallbackKind selects what happens to a network click request that
// never gets ACKed.
type FallbackKind uint8

const (
	LocalFallback FallbackKind = iota
	DoNothing
)

// Clickable is one digital input driven by a 4-state FSM, classifying
// presses into short/long/super-long click events.
type Clickable struct {
	id    uint8
	index int
	pin   PinReader

	actuatorsShort     []int
	actuatorsLong      []int
	actuatorsSuperLong []int

	shortOK        bool
	longOK         bool
	superLongOK    bool
	netLongOK      bool
	netSuperLongOK bool

	longKind          LongKind
	superLongKind     SuperLongKind
	longFallback      FallbackKind
	superLongFallback FallbackKind

	debounceMS  uint32
	longMS      uint32
	superLongMS uint32

	state           fsmState
	stateChangeTime uint32
	lastAction      LastAction

	valid   bool
	checked bool
}

// ClickableConfig carries the boot-time definition of one Clickable,
// consumed once by Registry.AddClickable.
type ClickableConfig struct {
	ID                 uint8
	Pin                PinReader
	ActuatorsShort     []int
	ActuatorsLong      []int
	ActuatorsSuperLong []int
	ShortOK            bool
	LongOK             bool
	SuperLongOK        bool
	NetLongOK          bool
	NetSuperLongOK     bool
	LongKind           LongKind
	SuperLongKind      SuperLongKind
	LongFallback       FallbackKind
	SuperLongFallback  FallbackKind
	DebounceMS         uint32
	LongMS             uint32
	SuperLongMS        uint32
}

func newClickable(index int, cfg ClickableConfig) *Clickable {
	return &Clickable{
		id:                 cfg.ID,
		index:              index,
		pin:                cfg.Pin,
		actuatorsShort:     cfg.ActuatorsShort,
		actuatorsLong:      cfg.ActuatorsLong,
		actuatorsSuperLong: cfg.ActuatorsSuperLong,
		shortOK:            cfg.ShortOK,
		longOK:             cfg.LongOK,
		superLongOK:        cfg.SuperLongOK,
		netLongOK:          cfg.NetLongOK,
		netSuperLongOK:     cfg.NetSuperLongOK,
		longKind:           cfg.LongKind,
		superLongKind:      cfg.SuperLongKind,
		longFallback:       cfg.LongFallback,
		superLongFallback:  cfg.SuperLongFallback,
		debounceMS:         cfg.DebounceMS,
		longMS:             cfg.LongMS,
		superLongMS:        cfg.SuperLongMS,
	}
}

// ID returns the clickable's stable small integer id.
func (c *Clickable) ID() uint8 { return c.id }

// Index returns the registry-assigned slot index.
func (c *Clickable) Index() int { return c.index }

// QuickOK reports whether this clickable fires SHORT on press rather
// than on release: short-only, with no long or super-long capability.
func (c *Clickable) QuickOK() bool {
	return c.shortOK && !c.longOK && !c.superLongOK
}

// Valid reports whether check() found this clickable usable.
func (c *Clickable) Valid() bool { return c.valid }

// NetLongOK reports whether long clicks are requested over the network.
func (c *Clickable) NetLongOK() bool { return c.netLongOK }

// NetSuperLongOK reports whether super-long clicks are requested over
// the network.
func (c *Clickable) NetSuperLongOK() bool { return c.netSuperLongOK }

// LongFallback returns the configured fallback for an un-ACKed long click.
func (c *Clickable) LongFallback() FallbackKind { return c.longFallback }

// SuperLongFallback returns the configured fallback for an un-ACKed
// super-long click.
func (c *Clickable) SuperLongFallback() FallbackKind { return c.superLongFallback }

// SuperLongKindOf returns NORMAL or SELECTIVE.
func (c *Clickable) SuperLongKindOf() SuperLongKind { return c.superLongKind }

// check validates the clickable per spec.md §3's Clickable invariant
// and marks it checked. Called once by Registry.Finalize.
func (c *Clickable) check() {
	anyCapability := c.shortOK || c.longOK || c.superLongOK
	anyActuators := len(c.actuatorsShort) > 0 || len(c.actuatorsLong) > 0 || len(c.actuatorsSuperLong) > 0
	c.valid = anyCapability && anyActuators
	c.checked = true
}

// Detect reads the input level once and advances the FSM, returning the
// classified event for this tick. now must be the tick-cached
// TimeKeeper.Now() value so all comparisons in a tick are consistent.
func (c *Clickable) Detect(now uint32) ClickResult {
	level := c.pin.Read()

	switch c.state {
	case fsmIdle:
		if level {
			c.state = fsmDebouncing
			c.stateChangeTime = now
		}
		return NoClick

	case fsmDebouncing:
		if Elapsed(now, c.stateChangeTime) < c.debounceMS {
			return NoClick
		}
		if level {
			c.state = fsmPressed
			c.stateChangeTime = now
			c.lastAction = ActionNone
			if c.QuickOK() {
				return ShortClickQuick
			}
			return NoClick
		}
		// Bounce/noise: never reached the debounce window held high.
		c.state = fsmIdle
		return NoClick

	case fsmPressed:
		if level {
			held := Elapsed(now, c.stateChangeTime)
			if c.superLongOK && c.lastAction < ActionSuperLong && held >= c.superLongMS {
				c.lastAction = ActionSuperLong
				return SuperLongClick
			}
			if c.longOK && c.lastAction < ActionLong && held >= c.longMS {
				c.lastAction = ActionLong
				return LongClick
			}
			return NoClickKeepingClicked
		}
		c.state = fsmReleased
		return c.release()

	case fsmReleased:
		// Unreachable under normal scheduling: release() always
		// returns to IDLE in the same tick it transitions here.
		c.state = fsmIdle
		return NoClick
	}
	return NoClick
}

// release resolves the RELEASED->IDLE transition inline with the
// PRESSED->RELEASED edge, as spec.md §4.3 requires ("falls through
// same tick").
func (c *Clickable) release() ClickResult {
	c.state = fsmIdle
	if c.QuickOK() {
		return NoClick
	}
	if c.lastAction == ActionNone {
		if c.shortOK {
			return ShortClick
		}
		return NoClickNotShortClickable
	}
	return NoClick
}

// countOn returns how many of the given actuator indices are currently on.
func countOn(actuators []*Actuator, indices []int) int {
	n := 0
	for _, idx := range indices {
		if actuators[idx].State() {
			n++
		}
	}
	return n
}

// orChanges applies fn to every actuator index and ORs the results.
func orChanges(now uint32, actuators []*Actuator, indices []int, fn func(a *Actuator, now uint32) bool) bool {
	changed := false
	for _, idx := range indices {
		if fn(actuators[idx], now) {
			changed = true
		}
	}
	return changed
}

// ShortClick toggles every actuator in actuatorsShort.
func (c *Clickable) ShortClick(now uint32, actuators []*Actuator) bool {
	return orChanges(now, actuators, c.actuatorsShort, func(a *Actuator, now uint32) bool {
		return a.ToggleState(now)
	})
}

// LongClick applies the configured LongKind to every actuator in
// actuatorsLong. NORMAL sets all-on iff strictly fewer than half are
// currently on (preserved strict per spec.md's Open Question (c)).
func (c *Clickable) LongClick(now uint32, actuators []*Actuator) bool {
	target := c.longClickTarget(actuators)
	return orChanges(now, actuators, c.actuatorsLong, func(a *Actuator, now uint32) bool {
		return a.SetState(now, target)
	})
}

func (c *Clickable) longClickTarget(actuators []*Actuator) bool {
	switch c.longKind {
	case LongOnOnly:
		return true
	case LongOffOnly:
		return false
	default: // LongNormal
		total := len(c.actuatorsLong)
		if total == 0 {
			return false
		}
		return countOn(actuators, c.actuatorsLong)*2 < total
	}
}

// SuperLongClickSelective turns off every unprotected actuator in
// actuatorsSuperLong. The NORMAL super-long variant is handled at the
// Registry level via Registry.TurnOffUnprotectedActuators.
func (c *Clickable) SuperLongClickSelective(now uint32, actuators []*Actuator) bool {
	changed := false
	for _, idx := range c.actuatorsSuperLong {
		a := actuators[idx]
		if a.Protected() {
			continue
		}
		if a.SetState(now, false) {
			changed = true
		}
	}
	return changed
}
