// Package master coordinates a whole bus of modules: opening and scanning
// the bus, running discovery, fanning operations out across modules on a
// bounded worker pool and persisting the discovered catalog.
//
// The fan-out keeps at most one outstanding operation per module (each
// Module handle owns its transport endpoint), collects every module's
// outcome before reporting, and preserves module order in its results so
// output lines up with the catalog regardless of completion order.
package master
