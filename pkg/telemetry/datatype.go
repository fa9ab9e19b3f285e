package telemetry

// DataType identifies one primitive wire type in a telemetry format.
// The value of each constant is its ASCII tag character in format strings.
type DataType byte

const (
	// TypeStr is a variable-length, NUL-terminated string.
	TypeStr DataType = 'S'
	// TypeChar is a single ASCII character.
	TypeChar DataType = 'c'
	// TypeUint8 is an unsigned 8-bit integer.
	TypeUint8 DataType = 'u'
	// TypeInt8 is a signed 8-bit integer.
	TypeInt8 DataType = 't'
	// TypeUint16 is an unsigned 16-bit integer.
	TypeUint16 DataType = 's'
	// TypeInt16 is a signed 16-bit integer.
	TypeInt16 DataType = 'n'
	// TypeUint32 is an unsigned 32-bit integer.
	TypeUint32 DataType = 'i'
	// TypeInt32 is a signed 32-bit integer.
	TypeInt32 DataType = 'd'
	// TypeUint64 is an unsigned 64-bit integer.
	TypeUint64 DataType = 'l'
	// TypeInt64 is a signed 64-bit integer.
	TypeInt64 DataType = 'k'
	// TypeFloat is an IEEE-754 single-precision float.
	TypeFloat DataType = 'f'
	// TypeDouble is an IEEE-754 double-precision float.
	TypeDouble DataType = 'F'
	// TypeHex8 is an unsigned 8-bit integer displayed in hexadecimal.
	TypeHex8 DataType = 'x'
	// TypeHex16 is an unsigned 16-bit integer displayed in hexadecimal.
	TypeHex16 DataType = 'z'
)

// byteLengths is the width table shared by every consumer of the codec:
// payload decoding, response sizing and random data generation all read the
// widths from here so they cannot drift apart. TypeStr is absent because its
// width is unknown until the terminator (or a discovered length) is seen.
var byteLengths = map[DataType]int{
	TypeChar:   1,
	TypeUint8:  1,
	TypeInt8:   1,
	TypeUint16: 2,
	TypeInt16:  2,
	TypeUint32: 4,
	TypeInt32:  4,
	TypeUint64: 8,
	TypeInt64:  8,
	TypeFloat:  4,
	TypeDouble: 8,
	TypeHex8:   1,
	TypeHex16:  2,
}

// ParseDataType maps a format tag character to its DataType.
// 'X' and 'Z' are accepted as aliases for the hex types.
// The second return value reports whether c is a recognized tag.
func ParseDataType(c byte) (DataType, bool) {
	switch c {
	case 'X':
		return TypeHex8, true
	case 'Z':
		return TypeHex16, true
	}
	t := DataType(c)
	if t == TypeStr {
		return t, true
	}
	if _, ok := byteLengths[t]; ok {
		return t, true
	}
	return 0, false
}

// ByteLength returns the fixed wire width of the type.
// The second return value is false for TypeStr, whose width is variable.
func (t DataType) ByteLength() (int, bool) {
	n, ok := byteLengths[t]
	return n, ok
}

// Tag returns the format tag character for the type.
func (t DataType) Tag() byte {
	return byte(t)
}

// String returns a human-readable name for the type.
func (t DataType) String() string {
	switch t {
	case TypeStr:
		return "str"
	case TypeChar:
		return "char"
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeHex8:
		return "hex8"
	case TypeHex16:
		return "hex16"
	default:
		return "unknown"
	}
}

// dataTypeNames maps the String() form back to the DataType, used by the
// tagged JSON encoding of Value.
var dataTypeNames = map[string]DataType{
	"str":    TypeStr,
	"char":   TypeChar,
	"u8":     TypeUint8,
	"i8":     TypeInt8,
	"u16":    TypeUint16,
	"i16":    TypeInt16,
	"u32":    TypeUint32,
	"i32":    TypeInt32,
	"u64":    TypeUint64,
	"i64":    TypeInt64,
	"float":  TypeFloat,
	"double": TypeDouble,
	"hex8":   TypeHex8,
	"hex16":  TypeHex16,
}
