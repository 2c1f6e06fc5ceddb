// Package serial implements the framed byte stream to the network
// bridge (spec.md §4.7) and the inbound command dispatcher (§4.8).
package serial

import (
	"bytes"

	"github.com/dbehnke/clicknode/internal/core"
	"github.com/dbehnke/clicknode/internal/wire"
)

// Stream is the non-blocking byte transport a Link reads/writes.
// Read must return only bytes already buffered (0, nil when nothing is
// available); Write is synchronous but bounded by short frames, per
// spec.md §5.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Framing selects the wire encoding, chosen at build time per spec.md §4.7.
type Framing uint8

const (
	FramingText Framing = iota
	FramingBinary
)

const readChunkSize = 128

// maxBufferedBytes bounds the inbound line/frame buffer per spec.md §5
// ("Inbound serial line buffer ... fixed; overflow discards the
// in-flight message").
const maxBufferedBytes = 512

// Link is the framed byte stream to/from the bridge: it sends outbound
// records, assembles/parses inbound frames, and manages keep-alive ping
// and connection liveness, per spec.md §4.7.
type Link struct {
	framing  Framing
	stream   Stream
	pingMS   uint32
	connTOMS uint32

	lastSentTime         uint32
	lastReceivedValidMS  uint32
	firstValidReceived   bool

	lineBuf   []byte // text mode: bytes accumulated since the last LF
	binaryBuf []byte // binary mode: bytes accumulated since the last complete frame

	onDecodeError func(reason string)
	onSend        func(payload []byte)
}

// OnSend registers a callback invoked with every outbound payload
// after it is written to the stream, for internal/observer's read-only
// mirror. Optional.
func (l *Link) OnSend(fn func(payload []byte)) { l.onSend = fn }

// NewLink builds a Link over stream using the given framing and
// keep-alive tunables.
func NewLink(framing Framing, stream Stream, pingIntervalMS, connectionTimeoutMS uint32) *Link {
	return &Link{framing: framing, stream: stream, pingMS: pingIntervalMS, connTOMS: connectionTimeoutMS}
}

// OnDecodeError registers a callback invoked when an inbound frame is
// malformed, for the debug logging spec.md §7 requires. Optional.
func (l *Link) OnDecodeError(fn func(reason string)) { l.onDecodeError = fn }

// Send encodes rec per the configured framing and writes it, updating
// LastSentTime so the keep-alive ping timer resets.
func (l *Link) Send(now uint32, rec wire.Record) error {
	var payload []byte
	var err error
	if l.framing == FramingText {
		payload, err = wire.EncodeText(rec)
	} else {
		payload, err = wire.EncodeBinary(rec)
	}
	if err != nil {
		return err
	}
	return l.sendRaw(now, payload)
}

// SendBoot emits the byte-exact BOOT payload, bypassing the encoder.
func (l *Link) SendBoot(now uint32) error {
	if l.framing == FramingText {
		return l.sendRaw(now, wire.TextBootPayload)
	}
	return l.sendRaw(now, wire.BinaryBootPayload)
}

// SendPing emits the byte-exact PING payload, bypassing the encoder.
func (l *Link) SendPing(now uint32) error {
	if l.framing == FramingText {
		return l.sendRaw(now, wire.TextPingPayload)
	}
	return l.sendRaw(now, wire.BinaryPingPayload)
}

func (l *Link) sendRaw(now uint32, payload []byte) error {
	_, err := l.stream.Write(payload)
	l.lastSentTime = now
	if err == nil && l.onSend != nil {
		l.onSend(payload)
	}
	return err
}

// CanPing reports whether the keep-alive interval has elapsed since the
// last outbound write.
func (l *Link) CanPing(now uint32) bool {
	return core.Elapsed(now, l.lastSentTime) > l.pingMS
}

// IsConnected reports whether at least one valid frame has been
// received within the connection timeout window.
func (l *Link) IsConnected(now uint32) bool {
	return l.firstValidReceived && core.Elapsed(now, l.lastReceivedValidMS) < l.connTOMS
}

// Drain reads everything currently buffered on the stream, decodes as
// many complete frames as are available, and invokes dispatch for
// each. Mirrors spec.md §4.9 step 3's "while serial has bytes" loop: it
// keeps reading chunks until the stream reports nothing more available.
func (l *Link) Drain(now uint32, dispatch func(wire.Record)) {
	chunk := make([]byte, readChunkSize)
	for {
		n, _ := l.stream.Read(chunk)
		if n == 0 {
			break
		}
		if l.framing == FramingText {
			l.lineBuf = append(l.lineBuf, chunk[:n]...)
			l.drainTextLines(now, dispatch)
			if len(l.lineBuf) > maxBufferedBytes {
				l.reportDecodeError("text line buffer overflow")
				l.lineBuf = l.lineBuf[:0]
			}
		} else {
			l.binaryBuf = append(l.binaryBuf, chunk[:n]...)
			l.drainBinaryFrames(now, dispatch)
			if len(l.binaryBuf) > maxBufferedBytes {
				l.reportDecodeError("binary frame buffer overflow")
				l.binaryBuf = l.binaryBuf[:0]
			}
		}
	}
}

func (l *Link) drainTextLines(now uint32, dispatch func(wire.Record)) {
	for {
		idx := bytes.IndexByte(l.lineBuf, '\n')
		if idx < 0 {
			return
		}
		line := l.lineBuf[:idx]
		l.lineBuf = l.lineBuf[idx+1:]
		rec, err := wire.DecodeText(line)
		if err != nil {
			l.reportDecodeError("text decode error")
			l.lineBuf = l.lineBuf[:0]
			continue
		}
		l.markReceived(now)
		dispatch(rec)
	}
}

func (l *Link) drainBinaryFrames(now uint32, dispatch func(wire.Record)) {
	for {
		if len(l.binaryBuf) == 0 {
			return
		}
		rec, consumed, err := wire.DecodeBinary(l.binaryBuf)
		if err == wire.ErrIncomplete {
			return
		}
		if err != nil {
			l.reportDecodeError("binary decode error")
			l.binaryBuf = l.binaryBuf[:0]
			return
		}
		l.binaryBuf = l.binaryBuf[consumed:]
		l.markReceived(now)
		dispatch(rec)
	}
}

func (l *Link) markReceived(now uint32) {
	l.firstValidReceived = true
	l.lastReceivedValidMS = now
}

// LastReceivedValidTime exposes the last valid-frame timestamp, used by
// the scheduler's broadcast-gating delay (spec.md §4.9 step 6).
func (l *Link) LastReceivedValidTime() uint32 { return l.lastReceivedValidMS }

func (l *Link) reportDecodeError(reason string) {
	if l.onDecodeError != nil {
		l.onDecodeError(reason)
	}
}
