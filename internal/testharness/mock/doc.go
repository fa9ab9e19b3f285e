// Package mock provides a simulated bus module for tests: a
// transport.Transport that answers telemetry, metadata and command queries
// from a module definition, with controllable readiness and checksums.
package mock
