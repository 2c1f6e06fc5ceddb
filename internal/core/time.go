package core

import "time"

// Clock abstracts the millisecond monotonic source the TimeKeeper reads.
// The production binary wires this to internal/hal; tests and
// cmd/simulate wire it to a fake that advances on demand.
type Clock interface {
	NowMS() uint32
}

// TimeKeeper caches a monotonic millisecond timestamp once per loop
// iteration so every timing decision within a tick observes the same
// "now". Comparisons elsewhere are written as unsigned differences
// (a - b), which stay correct across the 32-bit millisecond counter's
// ~49.7 day wraparound as long as the true elapsed time is less than
// half the range.
type TimeKeeper struct {
	clock Clock
	cache uint32
}

// NewTimeKeeper builds a TimeKeeper reading from clock.
func NewTimeKeeper(clock Clock) *TimeKeeper {
	return &TimeKeeper{clock: clock}
}

// Update refreshes the cached "now". Must be called exactly once per
// scheduler tick, before any component consults Now().
func (tk *TimeKeeper) Update() {
	tk.cache = tk.clock.NowMS()
}

// Now returns the timestamp cached by the most recent Update call.
func (tk *TimeKeeper) Now() uint32 {
	return tk.cache
}

// RealNow bypasses the cache for the rare caller that needs a fresh
// read mid-tick (e.g. measuring how long a fatal-error grace delay has
// elapsed while the watchdog countdown runs).
func (tk *TimeKeeper) RealNow() uint32 {
	return tk.clock.NowMS()
}

// Elapsed returns now-since, wrap-safe for differences under ~24.85 days.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// systemClock adapts time.Now to the Clock interface for non-embedded
// builds (desktop simulator, tests using real time).
type systemClock struct{ boot time.Time }

// NewSystemClock returns a Clock backed by the wall clock, with ms 0
// at construction time.
func NewSystemClock() Clock {
	return &systemClock{boot: time.Now()}
}

func (c *systemClock) NowMS() uint32 {
	return uint32(time.Since(c.boot).Milliseconds())
}
