package telemetry

import (
	"bytes"
	"fmt"
	"math/rand"
	"unicode/utf8"
)

// Format is an ordered sequence of data types describing one telemetry
// payload.
type Format []DataType

// ParseFormat builds a Format from the recognized tag characters in s.
// Unrecognized characters are silently dropped, not treated as an error;
// persisted module definitions rely on this behavior, so it must not be
// made stricter.
func ParseFormat(s string) Format {
	f := make(Format, 0, len(s))
	for i := 0; i < len(s); i++ {
		if t, ok := ParseDataType(s[i]); ok {
			f = append(f, t)
		}
	}
	return f
}

// String returns the format tag string.
func (f Format) String() string {
	b := make([]byte, len(f))
	for i, t := range f {
		b[i] = t.Tag()
	}
	return string(b)
}

// MarshalText encodes the format as its tag string, the persisted form.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText rebuilds the format from a tag string, with the same
// drop-unrecognized semantics as ParseFormat.
func (f *Format) UnmarshalText(text []byte) error {
	*f = ParseFormat(string(text))
	return nil
}

// ByteLength returns the total payload width in bytes.
// The second return value is false when the format contains a string
// element, in which case the width is undefined until a length is known.
func (f Format) ByteLength() (int, bool) {
	total := 0
	for _, t := range f {
		n, ok := t.ByteLength()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// Decode consumes data in format order and returns the typed values.
// String elements read up to and excluding a NUL terminator; fixed-width
// elements read exactly their width, little-endian. Truncated input, a
// missing terminator or invalid string text all yield an error wrapping
// ErrInvalidBytes.
func (f Format) Decode(data []byte) ([]Value, error) {
	values := make([]Value, 0, len(f))
	rest := data
	for _, t := range f {
		if t == TypeStr {
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				return nil, fmt.Errorf("%w: string element missing NUL terminator", ErrInvalidBytes)
			}
			s := rest[:end]
			if !utf8.Valid(s) {
				return nil, fmt.Errorf("%w: string element is not valid UTF-8", ErrInvalidBytes)
			}
			values = append(values, Str(string(s)))
			rest = rest[end+1:]
			continue
		}
		n, _ := t.ByteLength()
		if len(rest) < n {
			return nil, fmt.Errorf("%w: need %d bytes for %s, have %d", ErrInvalidBytes, n, t, len(rest))
		}
		values = append(values, decodeFixed(t, rest[:n]))
		rest = rest[n:]
	}
	return values, nil
}

// Encode is the inverse of Decode for well-formed values. It is used by the
// simulated transport and round-trip tests; production traffic only decodes.
func (f Format) Encode(values []Value) []byte {
	var buf []byte
	for _, v := range values {
		buf = v.appendBytes(buf)
	}
	return buf
}

// RandomValues generates one random value per format element, drawing from
// rng. String elements get a fixed placeholder so their encoded length stays
// predictable. Used by the simulated transport and round-trip tests.
func (f Format) RandomValues(rng *rand.Rand) []Value {
	values := make([]Value, len(f))
	for i, t := range f {
		values[i] = randomValue(t, rng)
	}
	return values
}
