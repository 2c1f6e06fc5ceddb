package engine

import (
	"testing"

	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/hal"
	"github.com/dbehnke/clicknode/internal/serial"
	"github.com/dbehnke/clicknode/internal/wire"
)

// fixture wires a Scheduler over fakes, mirroring how cmd/clicknode
// assembles one at boot, for the worked examples of spec.md §8.
type fixture struct {
	clock  *hal.FakeClock
	stream *hal.FakeStream
	link   *serial.Link
	reg    *core.Registry
	net    *core.NetworkClicks
	sched  *Scheduler
}

func newFixture(t *testing.T, tunables Tunables, build func(r *core.Registry)) *fixture {
	t.Helper()
	reg := core.NewRegistry(8, 8, 8)
	build(reg)
	if err := reg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	clock := hal.NewFakeClock()
	stream := hal.NewFakeStream()
	link := serial.NewLink(serial.FramingText, stream, tunables.PingIntervalMS, tunables.ConnectionTimeoutMS)
	linkEmitter := serial.NewLinkEmitter(link, func() uint32 { return clock.NowMS() })
	net := core.NewNetworkClicks(tunables.NetworkClickTimeoutMS, 8, linkEmitter, reg)
	dispatcher := serial.NewDispatcher(reg, net, link, "node")
	tk := core.NewTimeKeeper(clock)
	sched := NewScheduler(Deps{
		DeviceName:    "node",
		Tunables:      tunables,
		TimeKeeper:    tk,
		Registry:      reg,
		NetworkClicks: net,
		Link:          link,
		Dispatcher:    dispatcher,
	})
	return &fixture{clock: clock, stream: stream, link: link, reg: reg, net: net, sched: sched}
}

// tick advances the fake clock by 1ms and runs exactly one scheduler
// iteration, matching the 1ms super-loop cadence of spec.md §4.9.
func (f *fixture) tick() {
	f.clock.Advance(1)
	f.sched.Tick()
}

func (f *fixture) hold(pin *hal.Pin, level bool, ms uint32) {
	pin.Write(level)
	for i := uint32(0); i < ms; i++ {
		f.tick()
	}
}

func TestSchedulerS1ShortClickBroadcastsAfterDelay(t *testing.T) {
	tunables := DefaultTunables()
	var btnPin, relayPin *hal.Pin
	f := newFixture(t, tunables, func(r *core.Registry) {
		relayPin = hal.NewPin(false)
		r.AddActuator(1, relayPin, false, 0, 0, false)
		btnPin = hal.NewPin(false)
		r.AddClickable(core.ClickableConfig{
			ID: 1, Pin: btnPin, ShortOK: true, LongOK: true, ActuatorsShort: []int{0}, ActuatorsLong: []int{0},
			DebounceMS: tunables.ClickableDebounceMS, LongMS: tunables.LongMS, SuperLongMS: tunables.SuperLongMS,
		})
	})

	f.hold(btnPin, true, 30)
	f.hold(btnPin, false, 10)

	if !f.reg.Actuators()[0].State() {
		t.Fatalf("expected r1 to be on after SHORT_CLICK")
	}
	if len(f.stream.Outbound()) != 0 {
		t.Fatalf("must not broadcast before DELAY_AFTER_RECEIVE_MS has elapsed")
	}

	for i := 0; i < int(tunables.DelayAfterReceiveMS)+1; i++ {
		f.tick()
	}
	out := f.stream.Outbound()
	if len(out) == 0 {
		t.Fatalf("expected an ACTUATORS_STATE broadcast once the delay elapsed")
	}
	rec, err := wire.DecodeText(out[:len(out)-1])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.P != wire.ActuatorsState || len(rec.S) != 1 || rec.S[0] != 1 {
		t.Fatalf("unexpected broadcast record: %+v", rec)
	}
}

func TestSchedulerS2LongClickNormalTurnsOnBoth(t *testing.T) {
	tunables := DefaultTunables()
	var btnPin *hal.Pin
	f := newFixture(t, tunables, func(r *core.Registry) {
		r.AddActuator(1, hal.NewPin(false), false, 0, 0, false)
		r.AddActuator(2, hal.NewPin(false), false, 0, 0, false)
		btnPin = hal.NewPin(false)
		r.AddClickable(core.ClickableConfig{
			ID: 1, Pin: btnPin, LongOK: true, ActuatorsLong: []int{0, 1},
			DebounceMS: tunables.ClickableDebounceMS, LongMS: tunables.LongMS, SuperLongMS: tunables.SuperLongMS,
		})
	})

	f.hold(btnPin, true, 500)
	f.hold(btnPin, false, 1)

	if !f.reg.Actuators()[0].State() || !f.reg.Actuators()[1].State() {
		t.Fatalf("expected both r1 and r2 on after LONG_CLICK, got %v %v",
			f.reg.Actuators()[0].State(), f.reg.Actuators()[1].State())
	}
}

func TestSchedulerS3LongClickLocalFallbackWhenDisconnected(t *testing.T) {
	tunables := DefaultTunables()
	var btnPin *hal.Pin
	f := newFixture(t, tunables, func(r *core.Registry) {
		r.AddActuator(1, hal.NewPin(false), false, 0, 0, false)
		btnPin = hal.NewPin(false)
		r.AddClickable(core.ClickableConfig{
			ID: 1, Pin: btnPin, LongOK: true, NetLongOK: true, ActuatorsLong: []int{0}, LongFallback: core.LocalFallback,
			DebounceMS: tunables.ClickableDebounceMS, LongMS: tunables.LongMS, SuperLongMS: tunables.SuperLongMS,
		})
	})

	f.hold(btnPin, true, 450)
	f.hold(btnPin, false, 1)

	out := f.stream.Outbound()
	for len(out) > 0 {
		rec, err := wire.DecodeText(out[:indexOfLF(out)])
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.P == wire.NetworkClick {
			t.Fatalf("a disconnected link must never see an outbound NETWORK_CLICK")
		}
		out = out[indexOfLF(out)+1:]
	}
	if !f.reg.Actuators()[0].State() {
		t.Fatalf("expected the local long click to have run immediately since the link is disconnected")
	}
}

func TestSchedulerS4LongClickNetworkRequestThenFallback(t *testing.T) {
	tunables := DefaultTunables()
	var btnPin *hal.Pin
	f := newFixture(t, tunables, func(r *core.Registry) {
		r.AddActuator(1, hal.NewPin(false), false, 0, 0, false)
		btnPin = hal.NewPin(false)
		r.AddClickable(core.ClickableConfig{
			ID: 1, Pin: btnPin, LongOK: true, NetLongOK: true, ActuatorsLong: []int{0}, LongFallback: core.LocalFallback,
			DebounceMS: tunables.ClickableDebounceMS, LongMS: tunables.LongMS, SuperLongMS: tunables.SuperLongMS,
		})
	})

	// Make the link "connected" by feeding one valid inbound PING before
	// the press, so IsConnected(now) is true when the long click fires.
	f.stream.Feed(wire.TextPingPayload)
	f.tick()

	f.hold(btnPin, true, 450)
	f.hold(btnPin, false, 1)

	out := f.stream.Outbound()
	if !containsNetworkClickRequest(t, out, 1, wire.WireClickLong) {
		t.Fatalf("expected an outbound NETWORK_CLICK request, got %q", out)
	}
	if f.reg.Actuators()[0].State() {
		t.Fatalf("must not change local state while a network click is pending")
	}

	for i := 0; i < int(tunables.NetworkClickTimeoutMS)+int(tunables.NetworkClickCheckIntervalMS)+2; i++ {
		f.tick()
	}
	if !f.reg.Actuators()[0].State() {
		t.Fatalf("expected the local fallback to run once the request timed out unACKed")
	}
}

func TestSchedulerS5NetworkClickAckSuppressesLocalFallback(t *testing.T) {
	tunables := DefaultTunables()
	var btnPin *hal.Pin
	f := newFixture(t, tunables, func(r *core.Registry) {
		r.AddActuator(1, hal.NewPin(false), false, 0, 0, false)
		btnPin = hal.NewPin(false)
		r.AddClickable(core.ClickableConfig{
			ID: 1, Pin: btnPin, LongOK: true, NetLongOK: true, ActuatorsLong: []int{0}, LongFallback: core.LocalFallback,
			DebounceMS: tunables.ClickableDebounceMS, LongMS: tunables.LongMS, SuperLongMS: tunables.SuperLongMS,
		})
	})

	f.stream.Feed(wire.TextPingPayload)
	f.tick()
	f.hold(btnPin, true, 450)
	f.hold(btnPin, false, 1)
	f.stream.Outbound()

	for i := 0; i < 200; i++ {
		f.tick()
	}

	ackBody, err := wire.EncodeText(wire.Record{P: wire.NetworkClickAck, I: 1, T: uint8(wire.WireClickLong)})
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	f.stream.Feed(ackBody)
	f.tick()

	out := f.stream.Outbound()
	if !containsNetworkClickConfirm(t, out, 1, wire.WireClickLong) {
		t.Fatalf("expected an outbound NETWORK_CLICK confirm (c=1), got %q", out)
	}
	if f.reg.Actuators()[0].State() {
		t.Fatalf("an ACKed network click must never change local state")
	}
	if f.net.AnyPending() {
		t.Fatalf("expected the pending map to be empty after the ack")
	}

	for i := 0; i < int(tunables.NetworkClickTimeoutMS)+10; i++ {
		f.tick()
	}
	if f.reg.Actuators()[0].State() {
		t.Fatalf("the fallback must never run for an already-confirmed request")
	}
}

func TestSchedulerS6AutoOffSweepTurnsActuatorOff(t *testing.T) {
	tunables := DefaultTunables()
	f := newFixture(t, tunables, func(r *core.Registry) {
		r.AddActuator(1, hal.NewPin(false), false, 0, 600000, false)
	})

	setBody, err := wire.EncodeText(wire.Record{P: wire.SetSingleActuator, I: 1, S: []uint8{1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.stream.Feed(setBody)
	f.tick()
	if !f.reg.Actuators()[0].State() {
		t.Fatalf("expected r1 to be on after SET_SINGLE_ACTUATOR")
	}
	f.stream.Outbound()

	// Jump straight to the auto-off deadline instead of ticking every
	// intervening millisecond: nothing else in this scenario depends on
	// the 1ms cadence, only on "now" reaching the deadline.
	f.clock.Advance(600_000)
	f.sched.Tick()
	if f.reg.Actuators()[0].State() {
		t.Fatalf("expected the auto-off sweep to have turned r1 off by now")
	}
	found := false
	out := f.stream.Outbound()
	for len(out) > 0 {
		idx := indexOfLF(out)
		rec, err := wire.DecodeText(out[:idx])
		if err == nil && rec.P == wire.ActuatorsState && len(rec.S) == 1 && rec.S[0] == 0 {
			found = true
		}
		out = out[idx+1:]
	}
	if !found {
		t.Fatalf("expected an ACTUATORS_STATE broadcast reflecting the auto-off")
	}
}

func indexOfLF(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return len(b)
}

func containsNetworkClickRequest(t *testing.T, out []byte, clickableID uint8, kind wire.ClickKindWire) bool {
	t.Helper()
	for len(out) > 0 {
		idx := indexOfLF(out)
		rec, err := wire.DecodeText(out[:idx])
		if err == nil && rec.P == wire.NetworkClick && rec.I == clickableID && rec.T == uint8(kind) && rec.C == 0 {
			return true
		}
		if idx+1 > len(out) {
			break
		}
		out = out[idx+1:]
	}
	return false
}

func containsNetworkClickConfirm(t *testing.T, out []byte, clickableID uint8, kind wire.ClickKindWire) bool {
	t.Helper()
	for len(out) > 0 {
		idx := indexOfLF(out)
		rec, err := wire.DecodeText(out[:idx])
		if err == nil && rec.P == wire.NetworkClick && rec.I == clickableID && rec.T == uint8(kind) && rec.C == 1 {
			return true
		}
		if idx+1 > len(out) {
			break
		}
		out = out[idx+1:]
	}
	return false
}
