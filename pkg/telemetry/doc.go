// Package telemetry implements the SupMCU binary telemetry codec.
//
// SupMCU modules describe their telemetry payloads with a format string: one
// ASCII tag character per field, each mapping to a fixed-width little-endian
// primitive except the variable-length, NUL-terminated string type. The codec
// turns a runtime-supplied format string into typed decoded values and back.
//
// The package is pure: it performs no I/O and decoding is a function of
// (Format, bytes) alone. Response framing (ready header, padding/checksum
// footer) is handled by Codec.
package telemetry
