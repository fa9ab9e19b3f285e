package telemetry

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"str", Str("EPS"), "EPS"},
		{"char", Char('Z'), "Z"},
		{"uint", U32(4000000000), "4000000000"},
		{"negative int", I16(-42), "-42"},
		{"float", F32(1.5), "1.5"},
		{"double", F64(-0.25), "-0.25"},
		{"hex8", Hex8(0x0f), "0xf"},
		{"hex16", Hex16(0xbeef), "0xbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
		})
	}
}

func TestValueBytesLittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x34, 0x12}, U16(0x1234).Bytes())
	assert.Equal(t, []byte{0xfe, 0xff, 0xff, 0xff}, I32(-2).Bytes())
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, F32(1.0).Bytes())
	assert.Equal(t, []byte("raw"), Str("raw").Bytes())
}

func TestValueJSONRoundTrip(t *testing.T) {
	values := []Value{
		Str("battery"),
		Char('A'),
		U8(255),
		I8(-128),
		U64(1 << 60),
		I64(-1),
		F32(0.5),
		F64(3.25),
		Hex16(0xcafe),
	}

	for _, v := range values {
		t.Run(v.Type.String(), func(t *testing.T) {
			data, err := json.Marshal(v)
			require.NoError(t, err)

			var back Value
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, v, back)
		})
	}
}

func TestValueJSONTaggedForm(t *testing.T) {
	data, err := json.Marshal(U16(123))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"u16","value":123}`, string(data))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"type":"str","value":"ok"}`), &v))
	assert.Equal(t, Str("ok"), v)
}

func TestValueJSONUnknownType(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"type":"quaternion","value":1}`), &v)
	require.Error(t, err)
}
