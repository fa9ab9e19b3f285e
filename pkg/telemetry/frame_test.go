package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Header
	}{
		{"ready", []byte{0x01, 0x10, 0x20, 0x30, 0x40}, Header{Ready: true, Timestamp: 0x40302010}},
		{"not ready", []byte{0x00, 0, 0, 0, 0}, Header{}},
		{"only low bit counts", []byte{0xfe, 0, 0, 0, 0}, Header{}},
		{"high bits ignored when set", []byte{0xff, 1, 0, 0, 0}, Header{Ready: true, Timestamp: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHeader(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
		})
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	_, err := ParseHeader([]byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBytes))
}

func TestHeaderBytesRoundTrip(t *testing.T) {
	h := Header{Ready: true, Timestamp: 123456}
	back, err := ParseHeader(h.Bytes())
	require.NoError(t, err)
	assert.Equal(t, h, back)
}

// buildFrame assembles a complete response frame for codec tests.
func buildFrame(ready bool, payload []byte, checksum bool) []byte {
	frame := append(Header{Ready: ready, Timestamp: 7}.Bytes(), payload...)
	return AppendFooter(frame, checksum)
}

func TestCodecDecodeResponse(t *testing.T) {
	format := ParseFormat("ss")
	frame := buildFrame(true, format.Encode([]Value{U16(10), U16(20)}), false)

	header, values, err := NewCodec().DecodeResponse(frame, format)
	require.NoError(t, err)
	assert.True(t, header.Ready)
	assert.Equal(t, []Value{U16(10), U16(20)}, values)
}

func TestCodecDefaultIgnoresFooter(t *testing.T) {
	format := ParseFormat("u")
	frame := buildFrame(true, []byte{42}, false)
	// Corrupt the footer; the default codec treats it as padding.
	frame[len(frame)-1] = 0xff

	_, values, err := NewCodec().DecodeResponse(frame, format)
	require.NoError(t, err)
	assert.Equal(t, []Value{U8(42)}, values)
}

func TestCodecChecksumValidation(t *testing.T) {
	format := ParseFormat("u")
	codec := NewCodec(WithChecksumValidation())
	require.True(t, codec.ValidatesChecksum())

	good := buildFrame(true, []byte{42}, true)
	_, values, err := codec.DecodeResponse(good, format)
	require.NoError(t, err)
	assert.Equal(t, []Value{U8(42)}, values)

	bad := buildFrame(true, []byte{42}, true)
	bad[0] ^= 0x02 // flip a header bit after the checksum was computed
	_, _, err = codec.DecodeResponse(bad, format)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	zeroFooter := buildFrame(true, []byte{42}, false)
	_, _, err = codec.DecodeResponse(zeroFooter, format)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCodecDecodeTooShort(t *testing.T) {
	_, _, err := NewCodec().DecodeResponse(make([]byte, HeaderSize+FooterSize-1), Format{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBytes))
}
