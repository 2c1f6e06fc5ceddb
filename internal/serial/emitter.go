package serial

import (
	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/wire"
)

// LinkEmitter adapts a Link to core.NetworkClickEmitter, so
// core.NetworkClicks can put NETWORK_CLICK records on the wire without
// depending on the serial package directly.
type LinkEmitter struct {
	link *Link
	now  func() uint32
}

// NewLinkEmitter builds a LinkEmitter. now must return the tick-cached
// TimeKeeper value, so the emitted record's implicit timestamp (the
// Link's LastSentTime bookkeeping) stays consistent with the rest of
// the tick.
func NewLinkEmitter(link *Link, now func() uint32) *LinkEmitter {
	return &LinkEmitter{link: link, now: now}
}

// EmitNetworkClick implements core.NetworkClickEmitter.
func (e *LinkEmitter) EmitNetworkClick(clickableID uint8, kind core.ClickKind, confirm bool) {
	wireKind := wire.WireClickLong
	if kind == core.ClickKindSuperLong {
		wireKind = wire.WireClickSuperLong
	}
	_ = e.link.Send(e.now(), wire.NetworkClickRecord(clickableID, wireKind, confirm))
}
