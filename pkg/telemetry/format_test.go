package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"all fixed types", "ctunsidlkfFxz", "ctunsidlkfFxz"},
		{"string element", "Sf", "Sf"},
		{"hex aliases", "XZ", "xz"},
		{"unrecognized dropped", "c?t q", "ct"},
		{"empty", "", ""},
		{"only unrecognized", "!@#", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFormat(tt.input).String())
		})
	}
}

func TestFormatByteLength(t *testing.T) {
	tests := []struct {
		format  string
		want    int
		defined bool
	}{
		{"ctsdFz", 18, true},
		{"c", 1, true},
		{"lk", 16, true},
		{"", 0, true},
		{"lfS", 0, false},
		{"S", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			n, ok := ParseFormat(tt.format).ByteLength()
			assert.Equal(t, tt.defined, ok)
			if tt.defined {
				assert.Equal(t, tt.want, n)
			}
		})
	}
}

func TestFormatDecodeFixed(t *testing.T) {
	format := ParseFormat("csf")
	data := []byte{
		'A',        // char
		0x34, 0x12, // u16 LE
		0x00, 0x00, 0x80, 0x3f, // float32 1.0 LE
	}

	values, err := format.Decode(data)
	require.NoError(t, err)
	require.Len(t, values, 3)

	assert.Equal(t, Char('A'), values[0])
	assert.Equal(t, U16(0x1234), values[1])
	assert.Equal(t, F32(1.0), values[2])
}

func TestFormatDecodeString(t *testing.T) {
	format := ParseFormat("Ss")
	data := append([]byte("hello\x00"), 0x01, 0x02)

	values, err := format.Decode(data)
	require.NoError(t, err)
	require.Len(t, values, 2)

	assert.Equal(t, Str("hello"), values[0])
	assert.Equal(t, U16(0x0201), values[1])
}

func TestFormatDecodeStringIgnoresPadding(t *testing.T) {
	// Responses pad string payloads with zeros out to the discovered
	// length; everything after the terminator is ignored.
	format := ParseFormat("S")
	data := append([]byte("BM\x00"), make([]byte, 30)...)

	values, err := format.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Str("BM"), values[0])
}

func TestFormatDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   []byte
	}{
		{"truncated fixed", "i", []byte{1, 2}},
		{"missing terminator", "S", []byte("no nul here")},
		{"invalid utf8", "S", []byte{0xff, 0xfe, 0x00}},
		{"string then truncated", "Sc", []byte("x\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormat(tt.format).Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidBytes))
		})
	}
}

func TestFormatEncodeDecodeRoundTrip(t *testing.T) {
	format := ParseFormat("ctunsidlkfFxzS")
	values := []Value{
		Char('Q'),
		I8(-5),
		U8(200),
		I16(-1234),
		U16(54321),
		I32(-70000),
		U32(3000000000),
		I64(-1 << 40),
		U64(1 << 50),
		F32(2.5),
		F64(-0.125),
		Hex8(0xab),
		Hex16(0xbeef),
		Str("round trip"),
	}

	decoded, err := format.Decode(format.Encode(values))
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestFormatTextRoundTrip(t *testing.T) {
	format := ParseFormat("cSfz")

	text, err := format.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cSfz", string(text))

	var back Format
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, format, back)
}

func TestRandomValuesMatchFormat(t *testing.T) {
	format := ParseFormat("cufS")
	values := format.RandomValues(newTestRand())
	require.Len(t, values, 4)
	for i, v := range values {
		assert.Equal(t, format[i], v.Type)
	}

	// Random payloads must decode under the same format.
	_, err := format.Decode(append(format.Encode(values), 0))
	require.NoError(t, err)
}
