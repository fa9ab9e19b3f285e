package telemetry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// Value is one decoded telemetry field: a tagged union over the payload
// types. Exactly one of the payload fields is meaningful, selected by Type:
// Str for TypeStr, Uint for the unsigned and hex types and TypeChar, Int for
// the signed types, Float for both float widths. Values are comparable
// with ==.
type Value struct {
	Type  DataType
	Str   string
	Uint  uint64
	Int   int64
	Float float64
}

// Constructors, one per wire type.

// NewStr returns a string value.
func NewStr(s string) Value { return Value{Type: TypeStr, Str: s} }

// Str is shorthand for NewStr.
func Str(s string) Value { return NewStr(s) }

// Char returns a character value.
func Char(c byte) Value { return Value{Type: TypeChar, Uint: uint64(c)} }

// U8 returns an unsigned 8-bit value.
func U8(v uint8) Value { return Value{Type: TypeUint8, Uint: uint64(v)} }

// I8 returns a signed 8-bit value.
func I8(v int8) Value { return Value{Type: TypeInt8, Int: int64(v)} }

// U16 returns an unsigned 16-bit value.
func U16(v uint16) Value { return Value{Type: TypeUint16, Uint: uint64(v)} }

// I16 returns a signed 16-bit value.
func I16(v int16) Value { return Value{Type: TypeInt16, Int: int64(v)} }

// U32 returns an unsigned 32-bit value.
func U32(v uint32) Value { return Value{Type: TypeUint32, Uint: uint64(v)} }

// I32 returns a signed 32-bit value.
func I32(v int32) Value { return Value{Type: TypeInt32, Int: int64(v)} }

// U64 returns an unsigned 64-bit value.
func U64(v uint64) Value { return Value{Type: TypeUint64, Uint: v} }

// I64 returns a signed 64-bit value.
func I64(v int64) Value { return Value{Type: TypeInt64, Int: v} }

// F32 returns a single-precision float value.
func F32(v float32) Value { return Value{Type: TypeFloat, Float: float64(v)} }

// F64 returns a double-precision float value.
func F64(v float64) Value { return Value{Type: TypeDouble, Float: v} }

// Hex8 returns an 8-bit value displayed in hexadecimal.
func Hex8(v uint8) Value { return Value{Type: TypeHex8, Uint: uint64(v)} }

// Hex16 returns a 16-bit value displayed in hexadecimal.
func Hex16(v uint16) Value { return Value{Type: TypeHex16, Uint: uint64(v)} }

// String renders the value for display. Hex types render as 0x-prefixed
// hexadecimal, chars as the character itself.
func (v Value) String() string {
	switch v.Type {
	case TypeStr:
		return v.Str
	case TypeChar:
		return string(rune(v.Uint))
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return fmt.Sprintf("%d", v.Uint)
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return fmt.Sprintf("%d", v.Int)
	case TypeFloat:
		return fmt.Sprintf("%v", float32(v.Float))
	case TypeDouble:
		return fmt.Sprintf("%v", v.Float)
	case TypeHex8, TypeHex16:
		return fmt.Sprintf("0x%x", v.Uint)
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// appendBytes appends the little-endian wire encoding of the value to buf.
// String values are appended without a terminator; the framing layer or the
// caller supplies it where needed.
func (v Value) appendBytes(buf []byte) []byte {
	switch v.Type {
	case TypeStr:
		return append(buf, v.Str...)
	case TypeChar, TypeUint8, TypeHex8:
		return append(buf, byte(v.Uint))
	case TypeInt8:
		return append(buf, byte(int8(v.Int)))
	case TypeUint16, TypeHex16:
		return binary.LittleEndian.AppendUint16(buf, uint16(v.Uint))
	case TypeInt16:
		return binary.LittleEndian.AppendUint16(buf, uint16(int16(v.Int)))
	case TypeUint32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v.Uint))
	case TypeInt32:
		return binary.LittleEndian.AppendUint32(buf, uint32(int32(v.Int)))
	case TypeUint64:
		return binary.LittleEndian.AppendUint64(buf, v.Uint)
	case TypeInt64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
	case TypeFloat:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.Float)))
	case TypeDouble:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
	default:
		return buf
	}
}

// Bytes returns the little-endian wire encoding of the value.
func (v Value) Bytes() []byte {
	return v.appendBytes(nil)
}

// decodeFixed decodes one fixed-width element. data is exactly the
// element's width; callers check that before calling.
func decodeFixed(t DataType, data []byte) Value {
	switch t {
	case TypeChar:
		return Char(data[0])
	case TypeUint8:
		return U8(data[0])
	case TypeInt8:
		return I8(int8(data[0]))
	case TypeUint16:
		return U16(binary.LittleEndian.Uint16(data))
	case TypeInt16:
		return I16(int16(binary.LittleEndian.Uint16(data)))
	case TypeUint32:
		return U32(binary.LittleEndian.Uint32(data))
	case TypeInt32:
		return I32(int32(binary.LittleEndian.Uint32(data)))
	case TypeUint64:
		return U64(binary.LittleEndian.Uint64(data))
	case TypeInt64:
		return I64(int64(binary.LittleEndian.Uint64(data)))
	case TypeFloat:
		return F32(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case TypeDouble:
		return F64(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	case TypeHex8:
		return Hex8(data[0])
	case TypeHex16:
		return Hex16(binary.LittleEndian.Uint16(data))
	default:
		return Value{}
	}
}

// randomStr keeps random string payloads at a known encoded length.
const randomStr = "A random string"

// randomValue draws one value of type t from rng.
func randomValue(t DataType, rng *rand.Rand) Value {
	switch t {
	case TypeStr:
		return Str(randomStr)
	case TypeChar:
		return Char(byte(rng.Intn(0x5f) + 0x20)) // printable ASCII
	case TypeUint8:
		return U8(uint8(rng.Uint32()))
	case TypeInt8:
		return I8(int8(rng.Uint32()))
	case TypeUint16:
		return U16(uint16(rng.Uint32()))
	case TypeInt16:
		return I16(int16(rng.Uint32()))
	case TypeUint32:
		return U32(rng.Uint32())
	case TypeInt32:
		return I32(int32(rng.Uint32()))
	case TypeUint64:
		return U64(rng.Uint64())
	case TypeInt64:
		return I64(int64(rng.Uint64()))
	case TypeFloat:
		return F32(rng.Float32())
	case TypeDouble:
		return F64(rng.Float64())
	case TypeHex8:
		return Hex8(uint8(rng.Uint32()))
	case TypeHex16:
		return Hex16(uint16(rng.Uint32()))
	default:
		return Value{}
	}
}

// valueJSON is the tagged persisted form of a Value, matching the
// definition-file layout: {"type": "...", "value": ...}.
type valueJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value in tagged form.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Type {
	case TypeStr:
		payload = v.Str
	case TypeChar:
		payload = string(rune(v.Uint))
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64, TypeHex8, TypeHex16:
		payload = v.Uint
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		payload = v.Int
	case TypeFloat:
		payload = float32(v.Float)
	case TypeDouble:
		payload = v.Float
	default:
		return nil, fmt.Errorf("cannot marshal value of unknown type %q", byte(v.Type))
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.Type.String(), Value: raw})
}

// UnmarshalJSON decodes the tagged form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var tagged valueJSON
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	t, ok := dataTypeNames[tagged.Type]
	if !ok {
		return fmt.Errorf("unknown value type %q", tagged.Type)
	}
	*v = Value{Type: t}
	switch t {
	case TypeStr:
		return json.Unmarshal(tagged.Value, &v.Str)
	case TypeChar:
		var s string
		if err := json.Unmarshal(tagged.Value, &s); err != nil {
			return err
		}
		if len(s) > 0 {
			v.Uint = uint64(s[0])
		}
		return nil
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64, TypeHex8, TypeHex16:
		return json.Unmarshal(tagged.Value, &v.Uint)
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return json.Unmarshal(tagged.Value, &v.Int)
	case TypeFloat:
		var f float32
		if err := json.Unmarshal(tagged.Value, &f); err != nil {
			return err
		}
		v.Float = float64(f)
		return nil
	case TypeDouble:
		return json.Unmarshal(tagged.Value, &v.Float)
	}
	return nil
}
