// Package log provides structured protocol capture for SupMCU bus traffic.
//
// It defines the Logger interface and Event types for recording
// command/response exchanges at multiple layers (transport, protocol,
// discovery). Protocol capture is separate from operational logging (slog):
// it yields a complete machine-readable trace of every command sent, frame
// read, retry and state change, suitable for post-mortem analysis of a bus.
//
// # Basic Usage
//
//	// Development: events on the console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Production: binary capture file
//	logger, _ := log.NewFileLogger("/var/log/supmcu/bus.cbor")
//
//	// Both at once
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys.
// Reader iterates a capture file, optionally filtered.
package log
