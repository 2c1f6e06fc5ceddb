// Package hal declares the hardware primitives spec.md §1 assumes as
// given — pin read/write, millisecond clock, serial byte stream,
// watchdog reset — and provides an in-memory fake implementation of
// each, used by cmd/clicknode, cmd/simulate and the config, serial and
// engine tests.
package hal

import (
	"sync"

	"github.com/dbehnke/clicknode/internal/core"
)

// Watchdog triggers an unconditional hardware reset. This package
// provides only FakeWatchdog, which records the call; Fatal
// (internal/logging) calls Reset after the grace delay described in
// spec.md §7.
type Watchdog interface {
	Reset()
}

// Pin is a single digital I/O line, readable and writable. Real
// hardware wires one GPIO per Pin; the fake below is an in-memory
// boolean cell.
type Pin struct {
	mu    sync.Mutex
	level bool
}

// NewPin returns a fake pin at the given initial level.
func NewPin(initial bool) *Pin {
	return &Pin{level: initial}
}

// Read implements core.PinReader.
func (p *Pin) Read() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Write implements core.PinWriter.
func (p *Pin) Write(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

// Press sets the pin high; used by simulator/test drivers standing in
// for a physical button press.
func (p *Pin) Press() { p.Write(true) }

// Release sets the pin low.
func (p *Pin) Release() { p.Write(false) }

// FakePinFactory hands out one *Pin per pin number, creating it lazily
// on first reference and reusing it on every later reference — so a
// clickable and an actuator declared against the same pin number in a
// test fixture observe the same underlying line. Implements
// internal/config.PinFactory by structural typing.
type FakePinFactory struct {
	mu   sync.Mutex
	pins map[int]*Pin
}

// NewFakePinFactory returns an empty factory.
func NewFakePinFactory() *FakePinFactory {
	return &FakePinFactory{pins: make(map[int]*Pin)}
}

func (f *FakePinFactory) pin(number int) *Pin {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[number]
	if !ok {
		p = NewPin(false)
		f.pins[number] = p
	}
	return p
}

// InputPin implements config.PinFactory.
func (f *FakePinFactory) InputPin(number int) core.PinReader { return f.pin(number) }

// OutputPin implements config.PinFactory.
func (f *FakePinFactory) OutputPin(number int) core.PinWriter { return f.pin(number) }

// Pin exposes the underlying *Pin for a number, for test drivers that
// need to Press()/Release() it directly.
func (f *FakePinFactory) Pin(number int) *Pin { return f.pin(number) }

// FakeClock is a manually-advanced millisecond clock implementing
// core.Clock, so tests can drive exact tick timing instead of racing
// the wall clock.
type FakeClock struct {
	mu  sync.Mutex
	now uint32
}

// NewFakeClock returns a clock starting at ms 0.
func NewFakeClock() *FakeClock { return &FakeClock{} }

// NowMS implements core.Clock.
func (c *FakeClock) NowMS() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by deltaMS milliseconds.
func (c *FakeClock) Advance(deltaMS uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += deltaMS
}

// FakeWatchdog records whether Reset was triggered, for assertions in
// configuration-fatal test paths, instead of actually rebooting.
type FakeWatchdog struct {
	mu       sync.Mutex
	resetHit bool
}

// NewFakeWatchdog returns a watchdog that never actually resets.
func NewFakeWatchdog() *FakeWatchdog { return &FakeWatchdog{} }

// Reset implements Watchdog.
func (w *FakeWatchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetHit = true
}

// WasReset reports whether Reset has been called.
func (w *FakeWatchdog) WasReset() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resetHit
}

// FakeStream is an in-memory, non-blocking byte pipe implementing the
// serial transport: Write appends to an outbound buffer a test can
// inspect; Read drains from an inbound buffer a test can feed, never
// blocking — a Read with nothing buffered returns (0, nil), matching
// spec.md §5's "reads return only what is already buffered".
type FakeStream struct {
	mu  sync.Mutex
	out []byte
	in  []byte
}

// NewFakeStream returns an empty fake serial stream.
func NewFakeStream() *FakeStream { return &FakeStream{} }

// Write appends to the outbound buffer.
func (s *FakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, p...)
	return len(p), nil
}

// Read drains from the inbound buffer without blocking.
func (s *FakeStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.in) == 0 {
		return 0, nil
	}
	n := copy(p, s.in)
	s.in = s.in[n:]
	return n, nil
}

// Feed appends bytes the bridge "sent", available to the next Read calls.
func (s *FakeStream) Feed(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in = append(s.in, p...)
}

// Outbound returns and clears everything written so far, for assertions.
func (s *FakeStream) Outbound() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.out
	s.out = nil
	return out
}
