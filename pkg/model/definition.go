package model

import (
	"fmt"
	"sort"

	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
)

// DefaultResponseDelay is the per-module processing latency, in seconds,
// assumed until a definition says otherwise.
const DefaultResponseDelay = 0.05

// TelemetryKind distinguishes generic SupMCU metadata items from a
// module's own domain telemetry. The two kinds are separate index spaces.
type TelemetryKind uint8

const (
	// KindSupMCU addresses the cross-module metadata item space.
	KindSupMCU TelemetryKind = iota
	// KindModule addresses the module-specific item space.
	KindModule
)

// String returns the kind name.
func (k TelemetryKind) String() string {
	switch k {
	case KindSupMCU:
		return "SupMCU"
	case KindModule:
		return "Module"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the kind for the definition file.
func (k TelemetryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes the kind from the definition file.
func (k *TelemetryKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SupMCU":
		*k = KindSupMCU
	case "Module":
		*k = KindModule
	default:
		return fmt.Errorf("unknown telemetry kind %q", text)
	}
	return nil
}

// McuType identifies the microcontroller a module runs on, reported by the
// reserved MCU id telemetry item.
type McuType uint8

const (
	// McuUnknown is the zero value for modules that do not report an id.
	McuUnknown McuType = iota
	McuPIC24EP256MC206
	McuPIC24EP512MC206
)

// UnknownMcuIDError indicates an MCU id byte outside the known set.
type UnknownMcuIDError struct {
	ID uint8
}

func (e *UnknownMcuIDError) Error() string {
	return fmt.Sprintf("unknown MCU id %d", e.ID)
}

// ParseMcuType maps a reported MCU id byte to its type.
func ParseMcuType(id uint8) (McuType, error) {
	switch id {
	case 1:
		return McuPIC24EP256MC206, nil
	case 2:
		return McuPIC24EP512MC206, nil
	default:
		return McuUnknown, &UnknownMcuIDError{ID: id}
	}
}

// String returns the MCU part name.
func (m McuType) String() string {
	switch m {
	case McuPIC24EP256MC206:
		return "PIC24EP256MC206"
	case McuPIC24EP512MC206:
		return "PIC24EP512MC206"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the MCU type for the definition file.
func (m McuType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes the MCU type from the definition file.
func (m *McuType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PIC24EP256MC206":
		*m = McuPIC24EP256MC206
	case "PIC24EP512MC206":
		*m = McuPIC24EP512MC206
	default:
		*m = McuUnknown
	}
	return nil
}

// TelemetryDefinition describes one telemetry item: how to request it and
// how to decode the response payload. Length is required whenever the
// format's byte length is undefined (string elements present).
type TelemetryDefinition struct {
	Name string `json:"name"`

	// Format is stored as its tag string in the definition file.
	Format telemetry.Format `json:"format"`

	// Length is the payload byte length for formats containing strings.
	Length *int `json:"length"`

	// DefaultSimValue holds the item's default simulation values, present
	// only for simulatable items.
	DefaultSimValue []telemetry.Value `json:"default_sim_value"`

	Idx  int           `json:"idx"`
	Kind TelemetryKind `json:"telemetry_type"`
}

// Simulatable reports whether the item carries default simulation values.
// Derived, never stored independently.
func (d *TelemetryDefinition) Simulatable() bool {
	return d.DefaultSimValue != nil
}

// PayloadLength returns the item's payload byte length: the format width
// when defined, otherwise the discovered Length. The second return value is
// false when neither is available (a broken definition).
func (d *TelemetryDefinition) PayloadLength() (int, bool) {
	if n, ok := d.Format.ByteLength(); ok {
		return n, true
	}
	if d.Length != nil {
		return *d.Length, true
	}
	return 0, false
}

// CommandDefinition names one invokable module command.
type CommandDefinition struct {
	Name string `json:"name"`
	Idx  int    `json:"idx"`
}

// ModuleDefinition is the full discovered schema of one module. It is
// created empty (address only) at the start of discovery, filled
// field-by-field, then persisted or discarded. Telemetry entries are unique
// per (kind, idx); insertion order is preserved, index order is recoverable
// through the kind accessors.
type ModuleDefinition struct {
	// Name is the prefix of every module-scoped command, e.g. "EPS:TEL? 3".
	Name string `json:"name"`

	Address     uint16                `json:"address"`
	Simulatable bool                  `json:"simulatable"`
	Telemetry   []TelemetryDefinition `json:"telemetry"`
	Commands    []CommandDefinition   `json:"commands"`
	Mcu         McuType               `json:"mcu"`

	// ResponseDelay is the module's processing latency in seconds.
	ResponseDelay float64 `json:"response_delay"`
}

// NewModuleDefinition returns an empty definition for the given address,
// ready to be filled by discovery.
func NewModuleDefinition(address uint16) ModuleDefinition {
	return ModuleDefinition{
		Address:       address,
		ResponseDelay: DefaultResponseDelay,
	}
}

// String renders the module as "name @ address".
func (d *ModuleDefinition) String() string {
	return fmt.Sprintf("%s @ %#04x", d.Name, d.Address)
}

// FindTelemetry returns the telemetry item with the given kind and index.
func (d *ModuleDefinition) FindTelemetry(kind TelemetryKind, idx int) (*TelemetryDefinition, bool) {
	for i := range d.Telemetry {
		if d.Telemetry[i].Kind == kind && d.Telemetry[i].Idx == idx {
			return &d.Telemetry[i], true
		}
	}
	return nil, false
}

// FindTelemetryByName returns the telemetry item with the given name.
func (d *ModuleDefinition) FindTelemetryByName(name string) (*TelemetryDefinition, bool) {
	for i := range d.Telemetry {
		if d.Telemetry[i].Name == name {
			return &d.Telemetry[i], true
		}
	}
	return nil, false
}

// SupMCUTelemetry returns the SupMCU-kind items sorted by index.
func (d *ModuleDefinition) SupMCUTelemetry() []TelemetryDefinition {
	return d.telemetryOfKind(KindSupMCU)
}

// ModuleTelemetry returns the Module-kind items sorted by index.
func (d *ModuleDefinition) ModuleTelemetry() []TelemetryDefinition {
	return d.telemetryOfKind(KindModule)
}

func (d *ModuleDefinition) telemetryOfKind(kind TelemetryKind) []TelemetryDefinition {
	var out []TelemetryDefinition
	for _, t := range d.Telemetry {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out
}
