package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded top-level field of a protobuf message: its field
// number, wire type, and raw value (meaning depends on Type).
type Field struct {
	Num   protowire.Number
	Type  protowire.Type
	Varint uint64
	Bytes  []byte
	Fixed32 uint32
	Fixed64 uint64
}

// Message is a protobuf message decoded only down to its top-level field
// list — no generated descriptor, no reflection, just the field/wire-type/
// value triples protowire itself exposes. Callers pick the field numbers
// they need (the parser only ever needs a handful per payload type) and
// interpret them according to the schema documented in original_source/.
type Message struct {
	fields []Field
}

// Parse decodes buf into a Message. It does not validate that buf is a
// well-formed message beyond what's needed to walk its fields; a short or
// corrupt tail yields an error instead of a partial Message.
func Parse(buf []byte) (*Message, error) {
	m := &Message{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad varint field %d: %w", num, protowire.ParseError(n))
			}
			f.Varint = v
			buf = buf[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad fixed32 field %d: %w", num, protowire.ParseError(n))
			}
			f.Fixed32 = v
			buf = buf[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad fixed64 field %d: %w", num, protowire.ParseError(n))
			}
			f.Fixed64 = v
			buf = buf[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad bytes field %d: %w", num, protowire.ParseError(n))
			}
			f.Bytes = v
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad field %d (type %d): %w", num, typ, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
		m.fields = append(m.fields, f)
	}
	return m, nil
}

// Bytes returns the raw byte payload of the first field with the given
// number, interpreted as a length-delimited (string/bytes/embedded
// message) field.
func (m *Message) Bytes(num protowire.Number) ([]byte, bool) {
	for _, f := range m.fields {
		if f.Num == num && f.Type == protowire.BytesType {
			return f.Bytes, true
		}
	}
	return nil, false
}

// String is Bytes as a string.
func (m *Message) String(num protowire.Number) (string, bool) {
	b, ok := m.Bytes(num)
	return string(b), ok
}

// Varint returns the first varint-typed field with the given number.
func (m *Message) Varint(num protowire.Number) (uint64, bool) {
	for _, f := range m.fields {
		if f.Num == num && f.Type == protowire.VarintType {
			return f.Varint, true
		}
	}
	return 0, false
}

// Int32 is Varint narrowed to int32 (proto's zig-zag-free int32/enum
// encoding — sign bit lives in the high bits of the 64-bit varint).
func (m *Message) Int32(num protowire.Number) (int32, bool) {
	v, ok := m.Varint(num)
	return int32(v), ok
}

// Bool is Varint as a boolean.
func (m *Message) Bool(num protowire.Number) (bool, bool) {
	v, ok := m.Varint(num)
	return v != 0, ok
}

// Fixed32 returns the first fixed32-typed field with the given number.
func (m *Message) Fixed32(num protowire.Number) (uint32, bool) {
	for _, f := range m.fields {
		if f.Num == num && f.Type == protowire.Fixed32Type {
			return f.Fixed32, true
		}
	}
	return 0, false
}

// Float32 is Fixed32 reinterpreted as an IEEE-754 float.
func (m *Message) Float32(num protowire.Number) (float32, bool) {
	v, ok := m.Fixed32(num)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

// Fixed64 returns the first fixed64-typed field with the given number.
func (m *Message) Fixed64(num protowire.Number) (uint64, bool) {
	for _, f := range m.fields {
		if f.Num == num && f.Type == protowire.Fixed64Type {
			return f.Fixed64, true
		}
	}
	return 0, false
}

// Repeated returns every bytes-typed field with the given number, in wire
// order — used for repeated embedded messages such as GameEventList's
// descriptor array or a GameEvent's key list.
func (m *Message) Repeated(num protowire.Number) [][]byte {
	var out [][]byte
	for _, f := range m.fields {
		if f.Num == num && f.Type == protowire.BytesType {
			out = append(out, f.Bytes)
		}
	}
	return out
}
