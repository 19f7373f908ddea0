// Package propdecode implements C5: given a flattened send-table
// descriptor, decode one typed value from the bit stream (or, in skip
// mode, advance the cursor identically without retaining the value).
package propdecode

import (
	"fmt"
	"math"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/sendtable"
)

// Kind is the closed set of decoded value shapes.
type Kind int

const (
	KindInt32 Kind = iota
	KindInt64
	KindFloat
	KindVector3
	KindVector2
	KindString
	KindArray
)

// Vector3 is a three-component float vector.
type Vector3 struct{ X, Y, Z float32 }

// Vector2 is a two-component float vector (z implicitly 0).
type Vector2 struct{ X, Y float32 }

// Value is a tagged-union decoded property value.
type Value struct {
	Kind    Kind
	Int32   int32
	Int64   int64
	Float   float32
	Vector3 Vector3
	Vector2 Vector2
	String  string
	Array   []Value
}

const (
	maxStringLen = 1024 // §4.4: String length capped at 1 KiB
	normFracBits = 11
)

// Decode reads one value for prop from r. When skip is true, the cursor
// still advances exactly as it would for a retained decode, but the
// returned Value is the zero Value — callers in skip mode should discard
// the result rather than rely on its contents.
func Decode(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	switch prop.Type {
	case sendtable.Int:
		return decodeInt(r, prop, skip)
	case sendtable.Float:
		return decodeFloatValue(r, prop, skip)
	case sendtable.Vector:
		return decodeVector(r, prop, skip)
	case sendtable.VectorXY:
		return decodeVectorXY(r, prop, skip)
	case sendtable.String:
		return decodeString(r, skip)
	case sendtable.Array:
		return decodeArray(r, prop, skip)
	case sendtable.Int64:
		return decodeInt64(r, prop, skip)
	default:
		return Value{}, fmt.Errorf("propdecode: unsupported wire type %v", prop.Type)
	}
}

func decodeInt(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	bits := uint(prop.NumBits)
	if bits == 0 {
		bits = 32
	}
	if prop.Flags.Has(sendtable.FlagVarInt) {
		v, err := r.ReadVarUint32()
		if err != nil {
			return Value{}, err
		}
		if skip {
			return Value{}, nil
		}
		if prop.Flags.Has(sendtable.FlagUnsigned) {
			return Value{Kind: KindInt32, Int32: int32(v)}, nil
		}
		// zig-zag signed varint: the sign lives in bit 0 and the magnitude
		// in the bits above it.
		return Value{Kind: KindInt32, Int32: int32(v>>1) ^ -int32(v&1)}, nil
	}
	if prop.Flags.Has(sendtable.FlagUnsigned) {
		v, err := r.ReadUBits(bits)
		if err != nil {
			return Value{}, err
		}
		if skip {
			return Value{}, nil
		}
		return Value{Kind: KindInt32, Int32: int32(v)}, nil
	}
	v, err := r.ReadSBits(bits)
	if err != nil {
		return Value{}, err
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindInt32, Int32: v}, nil
}

func decodeInt64(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	if prop.Flags.Has(sendtable.FlagVarInt) {
		lo, err := r.ReadVarUint32()
		if err != nil {
			return Value{}, err
		}
		hi, err := r.ReadVarUint32()
		if err != nil {
			return Value{}, err
		}
		if skip {
			return Value{}, nil
		}
		return Value{Kind: KindInt64, Int64: int64(hi)<<32 | int64(lo)}, nil
	}
	lo, err := r.ReadUBits(32)
	if err != nil {
		return Value{}, err
	}
	hi, err := r.ReadUBits(32)
	if err != nil {
		return Value{}, err
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindInt64, Int64: int64(hi)<<32 | int64(lo)}, nil
}

func decodeFloat(r *bitread.Reader, prop *sendtable.FlatProp) (float32, error) {
	switch {
	case prop.Flags.Has(sendtable.FlagCoord):
		return decodeCoord(r)
	case prop.Flags.Has(sendtable.FlagNormal):
		return decodeNormal(r)
	case prop.Flags.Has(sendtable.FlagNoScale):
		v, err := r.ReadUBits(32)
		if err != nil {
			return 0, err
		}
		return math.Float32frombits(v), nil
	case prop.Flags.Has(sendtable.FlagCellCoord), prop.Flags.Has(sendtable.FlagCellCoordLowPrecision), prop.Flags.Has(sendtable.FlagCellCoordIntegral):
		return decodeCellCoord(r, prop)
	default:
		return decodeLinear(r, prop)
	}
}

func decodeFloatValue(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	f, err := decodeFloat(r, prop)
	if err != nil {
		return Value{}, err
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindFloat, Float: f}, nil
}

// decodeCoord implements the Source-engine coordinate encoding: integer
// and fraction parts are each gated by a presence bit, with a sign bit
// only read when either part is present.
func decodeCoord(r *bitread.Reader) (float32, error) {
	const coordFracBits = 5
	const coordDenom = 1 << coordFracBits
	const coordIntBitsMP = 11

	hasInt, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	hasFrac, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	if hasInt == 0 && hasFrac == 0 {
		return 0, nil
	}

	negative, err := r.ReadBit()
	if err != nil {
		return 0, err
	}

	var intVal uint32
	if hasInt != 0 {
		intVal, err = r.ReadUBits(coordIntBitsMP)
		if err != nil {
			return 0, err
		}
		intVal++ // encoding biases by one so a zero-but-present int is distinguishable
	}
	var fracVal uint32
	if hasFrac != 0 {
		fracVal, err = r.ReadUBits(coordFracBits)
		if err != nil {
			return 0, err
		}
	}

	value := float32(intVal) + float32(fracVal)/coordDenom
	if negative != 0 {
		value = -value
	}
	return value, nil
}

func decodeNormal(r *bitread.Reader) (float32, error) {
	negative, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	frac, err := r.ReadUBits(normFracBits)
	if err != nil {
		return 0, err
	}
	value := float32(frac) / float32((1<<normFracBits)-1)
	if negative != 0 {
		value = -value
	}
	return value, nil
}

func decodeCellCoord(r *bitread.Reader, prop *sendtable.FlatProp) (float32, error) {
	bits := uint(prop.NumBits)
	v, err := r.ReadUBits(bits)
	if err != nil {
		return 0, err
	}
	if prop.Flags.Has(sendtable.FlagCellCoordIntegral) {
		return float32(v), nil
	}
	fracBits := uint(5)
	if prop.Flags.Has(sendtable.FlagCellCoordLowPrecision) {
		fracBits = 3
	}
	frac, err := r.ReadUBits(fracBits)
	if err != nil {
		return 0, err
	}
	return float32(v) + float32(frac)/float32(uint32(1)<<fracBits), nil
}

func decodeLinear(r *bitread.Reader, prop *sendtable.FlatProp) (float32, error) {
	bits := uint(prop.NumBits)
	v, err := r.ReadUBits(bits)
	if err != nil {
		return 0, err
	}
	maxVal := float32((uint64(1) << bits) - 1)
	frac := float32(v) / maxVal
	return prop.LowValue + frac*(prop.HighValue-prop.LowValue), nil
}

func decodeVector(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	x, err := decodeFloat(r, prop)
	if err != nil {
		return Value{}, err
	}
	y, err := decodeFloat(r, prop)
	if err != nil {
		return Value{}, err
	}

	var z float32
	if prop.Flags.Has(sendtable.FlagNormal) {
		negative, err := r.ReadBit()
		if err != nil {
			return Value{}, err
		}
		sumSquares := x*x + y*y
		if sumSquares < 1 {
			z = float32(math.Sqrt(float64(1 - sumSquares)))
		}
		if negative != 0 {
			z = -z
		}
	} else {
		z, err = decodeFloat(r, prop)
		if err != nil {
			return Value{}, err
		}
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindVector3, Vector3: Vector3{X: x, Y: y, Z: z}}, nil
}

func decodeVectorXY(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	x, err := decodeFloat(r, prop)
	if err != nil {
		return Value{}, err
	}
	y, err := decodeFloat(r, prop)
	if err != nil {
		return Value{}, err
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindVector2, Vector2: Vector2{X: x, Y: y}}, nil
}

func decodeString(r *bitread.Reader, skip bool) (Value, error) {
	length, err := r.ReadUBits(9)
	if err != nil {
		return Value{}, err
	}
	if int(length) > maxStringLen {
		return Value{}, fmt.Errorf("propdecode: string length %d exceeds %d byte cap", length, maxStringLen)
	}
	buf := make([]byte, length)
	if err := r.ReadBytes(buf); err != nil {
		return Value{}, err
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindString, String: string(buf)}, nil
}

func decodeArray(r *bitread.Reader, prop *sendtable.FlatProp, skip bool) (Value, error) {
	if prop.ArrayElemProp == nil {
		return Value{}, fmt.Errorf("propdecode: array property %s has no element descriptor", prop.VarName)
	}
	bits := ceilLog2(prop.ElementCount)
	n, err := r.ReadUBits(bits)
	if err != nil {
		return Value{}, err
	}

	elemFlat := sendtable.FlatProp{Descriptor: prop.ArrayElemProp}
	var elems []Value
	if !skip {
		elems = make([]Value, 0, n)
	}
	for i := uint32(0); i < n; i++ {
		v, err := Decode(r, &elemFlat, skip)
		if err != nil {
			return Value{}, err
		}
		if !skip {
			elems = append(elems, v)
		}
	}
	if skip {
		return Value{}, nil
	}
	return Value{Kind: KindArray, Array: elems}, nil
}

func ceilLog2(n int32) uint {
	if n <= 1 {
		return 1
	}
	bits := uint(0)
	v := uint32(n - 1)
	for v > 0 {
		bits++
		v >>= 1
	}
	return bits
}
