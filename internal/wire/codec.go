package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Pre-encoded BOOT/PING payloads, byte-exact per spec.md §6, emitted via
// a raw byte write that bypasses the encoder on every tick — these are
// hot enough (PING fires whenever the link has been idle) that
// re-encoding them each time would be wasted work.
var (
	TextBootPayload  = []byte("{\"p\":4}\n")
	TextPingPayload  = []byte("{\"p\":5}\n")
	BinaryBootPayload = []byte{0x81, 0xA1, 0x70, 0x04}
	BinaryPingPayload = []byte{0x81, 0xA1, 0x70, 0x05}
)

// toMap turns a Record into the minimal key set its command actually
// uses, so the encoded frame carries only meaningful fields.
func (r Record) toMap() map[string]any {
	m := map[string]any{"p": uint8(r.P)}
	switch r.P {
	case DeviceDetails:
		m["n"] = r.N
		m["a"] = r.A
		m["b"] = r.B
	case ActuatorsState:
		m["s"] = r.S
	case NetworkClick:
		m["t"] = r.T
		m["i"] = r.I
		m["c"] = r.C
	case SetState:
		m["s"] = r.S
	case SetSingleActuator:
		m["i"] = r.I
		if len(r.S) > 0 {
			m["s"] = r.S[0]
		}
	case NetworkClickAck:
		m["t"] = r.T
		m["i"] = r.I
	case FailoverClick:
		m["t"] = r.T
		m["i"] = r.I
	}
	return m
}

// EncodeText renders rec as an LF-terminated JSON line.
func EncodeText(rec Record) ([]byte, error) {
	m := rec.toMap()
	// encoding/json renders []uint8 as a base64 string; the wire carries
	// these fields as JSON arrays of numbers.
	for k, v := range m {
		if arr, ok := v.([]uint8); ok {
			nums := make([]int, len(arr))
			for i, b := range arr {
				nums[i] = int(b)
			}
			m[k] = nums
		}
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}

// EncodeBinary renders rec as a MessagePack object.
func EncodeBinary(rec Record) ([]byte, error) {
	return msgpack.Marshal(rec.toMap())
}

// DecodeText decodes a single LF-stripped JSON line into a Record.
// Missing keys surface as the enum's reserved-invalid zero value, per
// spec.md §4.8's validation-by-convention rule.
func DecodeText(line []byte) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, err
	}
	return fromMap(raw), nil
}

// ErrIncomplete signals that a binary frame is not yet fully buffered;
// spec.md §4.7 treats this as a normal non-error wait-for-more signal,
// never a decode failure.
var ErrIncomplete = fmt.Errorf("wire: incomplete binary frame")

// DecodeBinary attempts to decode one MessagePack object from the front
// of buf. Returns the decoded record and the number of bytes consumed
// on success. Returns ErrIncomplete (consumed==0) when buf does not yet
// hold a complete object; the caller must wait for more bytes rather
// than treat this as malformed input. Any other error means the bytes
// are not a valid frame at all; the caller drains its receive buffer.
func DecodeBinary(buf []byte) (Record, int, error) {
	reader := bytes.NewReader(buf)
	dec := msgpack.NewDecoder(reader)
	raw, err := dec.DecodeMap()
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Record{}, 0, ErrIncomplete
		}
		return Record{}, 0, err
	}
	consumed := len(buf) - reader.Len()
	return fromMap(raw), consumed, nil
}

func fromMap(raw map[string]any) Record {
	r := Record{}
	if v, ok := toUint8(raw["p"]); ok {
		r.P = Command(v)
	}
	if v, ok := raw["n"].(string); ok {
		r.N = v
	}
	r.A, _ = toUint8Array(raw["a"])
	r.B, _ = toUint8Array(raw["b"])
	if arr, ok := toUint8Array(raw["s"]); ok {
		r.S = arr
	} else if v, ok := toUint8(raw["s"]); ok {
		r.S = []uint8{v}
	}
	if v, ok := toUint8(raw["i"]); ok {
		r.I = v
	}
	if v, ok := toUint8(raw["t"]); ok {
		r.T = v
	}
	if v, ok := toUint8(raw["c"]); ok {
		r.C = v
	}
	return r
}

// toUint8 converts the handful of numeric representations that
// encoding/json and msgpack produce when decoding into interface{}.
func toUint8(v any) (uint8, bool) {
	switch n := v.(type) {
	case float64:
		return uint8(n), true
	case int64:
		return uint8(n), true
	case uint64:
		return uint8(n), true
	case int:
		return uint8(n), true
	case uint8:
		return n, true
	case int8:
		return uint8(n), true
	default:
		return 0, false
	}
}

func toUint8Array(v any) ([]uint8, bool) {
	arr, ok := v.([]any)
	if !ok {
		if direct, ok := v.([]uint8); ok {
			return direct, true
		}
		return nil, false
	}
	out := make([]uint8, 0, len(arr))
	for _, elem := range arr {
		n, ok := toUint8(elem)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
