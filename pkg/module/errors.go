package module

import (
	"errors"
	"fmt"

	"github.com/supmcu-protocol/supmcu-go/pkg/model"
)

// ErrMissingDefinition indicates an operation that needs a module definition
// on a handle that has none (Discover has not run and none was loaded).
var ErrMissingDefinition = errors.New("module has no definition")

// CommandError wraps a failure to write a command to a module.
type CommandError struct {
	Address uint16
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("sending command to module %#04x: %v", e.Address, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// TelemetryRequestError wraps a failure to read or decode a telemetry
// response.
type TelemetryRequestError struct {
	Address uint16
	Err     error
}

func (e *TelemetryRequestError) Error() string {
	return fmt.Sprintf("requesting telemetry from module %#04x: %v", e.Address, e.Err)
}

func (e *TelemetryRequestError) Unwrap() error { return e.Err }

// NotReadyError indicates a response whose header readiness flag was
// cleared: the module has not finished producing the requested data. The
// engine retries these within the configured budget; any surviving
// NotReadyError means the budget ran out.
type NotReadyError struct {
	Address uint16
	Command string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("module %#04x not ready for %q", e.Address, e.Command)
}

// TelemetryIndexError indicates a (kind, index) pair absent from the
// module's definition.
type TelemetryIndexError struct {
	Kind model.TelemetryKind
	Idx  int
}

func (e *TelemetryIndexError) Error() string {
	return fmt.Sprintf("no %s telemetry at index %d", e.Kind, e.Idx)
}

// UnknownTelemetryNameError indicates a telemetry name absent from the
// module's definition.
type UnknownTelemetryNameError struct {
	Name string
}

func (e *UnknownTelemetryNameError) Error() string {
	return fmt.Sprintf("unknown telemetry name %q", e.Name)
}

// VersionParseError indicates a firmware version string no command prefix
// could be extracted from.
type VersionParseError struct {
	Version string
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("cannot parse module prefix from version %q", e.Version)
}
