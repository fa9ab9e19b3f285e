// Package module implements the per-module command/response engine and the
// discovery protocol.
//
// A Module handle owns one transport endpoint exclusively and is the unit
// of concurrency: the catalog fan-out (pkg/master) guarantees at most one
// outstanding operation per handle. The request cycle is
//
//	send "{prefix}:TEL? {idx}\n" -> wait response delay -> read framed
//	response -> decode -> retry on a cleared ready flag
//
// Retries resend the recorded last command and back off linearly. Discovery
// (Module.Discover) walks an unknown module's telemetry and command catalog
// field-by-field using a fixed set of metadata definitions, producing a
// complete model.ModuleDefinition with no prior schema.
package module
