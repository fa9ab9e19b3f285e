// Package model defines the SupMCU data model.
//
// # Definition Hierarchy
//
// A bus carries addressable modules, each exposing telemetry items and
// commands:
//
//	ModuleDefinition (EPS @ 0x52)
//	├── Telemetry (SupMCU kind)
//	│   ├── 0: firmware_version
//	│   ├── 14: amount
//	│   └── ...
//	├── Telemetry (Module kind)
//	│   ├── 0: cell_voltage_1
//	│   └── ...
//	└── Commands
//	    ├── 0: NOP
//	    └── ...
//
// Telemetry items are addressed by (kind, index): SupMCU-kind items are
// generic metadata shared by every module, Module-kind items are the
// module's own domain telemetry. Definitions are assembled field-by-field
// by discovery (see pkg/module) and persisted as JSON definition files
// (see pkg/persistence).
package model
