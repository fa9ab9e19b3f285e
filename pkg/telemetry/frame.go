package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Frame layout constants. Every telemetry response is
// [header][payload][footer] with fixed header and footer widths; the payload
// width comes from the matching telemetry definition.
const (
	// HeaderSize is the width of the response header in bytes.
	HeaderSize = 5

	// FooterSize is the width of the response footer in bytes.
	FooterSize = 8
)

// Codec errors.
var (
	// ErrInvalidBytes indicates payload bytes that do not match the
	// expected format.
	ErrInvalidBytes = errors.New("invalid telemetry bytes")

	// ErrValidation indicates a footer checksum mismatch.
	ErrValidation = errors.New("failed to validate response checksum")
)

// Header is the fixed response header: a readiness flag followed by a
// module-local timestamp. A cleared ready flag means the module has not
// finished producing the requested data and the request should be retried.
type Header struct {
	Ready     bool
	Timestamp uint32
}

// ParseHeader decodes a header from the first HeaderSize bytes of data.
// Only the low bit of the first byte carries the ready flag.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInvalidBytes, HeaderSize, len(data))
	}
	return Header{
		Ready:     data[0]&0x01 == 1,
		Timestamp: binary.LittleEndian.Uint32(data[1:HeaderSize]),
	}, nil
}

// Bytes returns the wire encoding of the header.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	if h.Ready {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:], h.Timestamp)
	return buf
}

// Checksum computes the footer checksum over data (header plus payload).
// Written little-endian into the first four footer bytes; the remaining
// footer bytes are zero.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// AppendFooter appends a FooterSize footer to frame. With checksum enabled
// the footer carries the checksum of the preceding bytes; otherwise it is
// zero padding.
func AppendFooter(frame []byte, checksum bool) []byte {
	footer := make([]byte, FooterSize)
	if checksum {
		binary.LittleEndian.PutUint32(footer, Checksum(frame))
	}
	return append(frame, footer...)
}

// Codec decodes framed telemetry responses. Footer validation is selected
// at construction; both behaviors coexist in one build so each can be
// exercised by tests.
type Codec struct {
	validateChecksum bool
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithChecksumValidation makes the codec compare the response footer
// against the checksum of the preceding bytes and reject mismatches.
func WithChecksumValidation() CodecOption {
	return func(c *Codec) { c.validateChecksum = true }
}

// NewCodec creates a response codec. By default the footer is consumed as
// padding without validation.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidatesChecksum reports whether footer validation is enabled.
func (c *Codec) ValidatesChecksum() bool {
	return c.validateChecksum
}

// DecodeResponse splits a raw response frame into its header and typed
// payload values. frame must be a complete [header][payload][footer] frame;
// the payload region is everything between the fixed-size header and
// footer. A checksum mismatch (when validation is enabled) returns
// ErrValidation before any decoding happens.
func (c *Codec) DecodeResponse(frame []byte, format Format) (Header, []Value, error) {
	if len(frame) < HeaderSize+FooterSize {
		return Header{}, nil, fmt.Errorf("%w: frame of %d bytes is shorter than framing overhead", ErrInvalidBytes, len(frame))
	}
	body := frame[:len(frame)-FooterSize]
	if c.validateChecksum {
		got := binary.LittleEndian.Uint32(frame[len(frame)-FooterSize:])
		if want := Checksum(body); got != want {
			return Header{}, nil, fmt.Errorf("%w: footer %#08x, computed %#08x", ErrValidation, got, want)
		}
	}
	header, err := ParseHeader(body)
	if err != nil {
		return Header{}, nil, err
	}
	values, err := format.Decode(body[HeaderSize:])
	if err != nil {
		return Header{}, nil, err
	}
	return header, values, nil
}
