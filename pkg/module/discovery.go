package module

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/supmcu-protocol/supmcu-go/pkg/log"
	"github.com/supmcu-protocol/supmcu-go/pkg/model"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
)

// Reserved SupMCU item indices used by discovery.
const (
	idxFirmwareVersion = 0
	idxTelemetryCounts = 14
	idxCommandCount    = 17
	idxMcuID           = 19
)

// Metadata definitions for the fixed-layout responses discovery reads.
// Exported so simulated modules can produce matching frames.

// VersionDefinition describes the firmware version item.
func VersionDefinition() model.TelemetryDefinition {
	return stringMetadata("Firmware Version", idxFirmwareVersion, 77)
}

// NameDefinition describes the ",NAME" response of any item.
func NameDefinition() model.TelemetryDefinition {
	return stringMetadata("Telemetry Name", 0, 33)
}

// FormatDefinition describes the ",FORMAT" response of any item.
func FormatDefinition() model.TelemetryDefinition {
	return stringMetadata("Telemetry Format", 0, 25)
}

// LengthDefinition describes the ",LENGTH" response of any item.
func LengthDefinition() model.TelemetryDefinition {
	return model.TelemetryDefinition{
		Name:   "Telemetry Length",
		Format: telemetry.ParseFormat("s"),
		Kind:   model.KindSupMCU,
	}
}

// SimulatableDefinition describes the ",SIMULATABLE" response of any item.
func SimulatableDefinition() model.TelemetryDefinition {
	return model.TelemetryDefinition{
		Name:   "Telemetry Simulatable",
		Format: telemetry.ParseFormat("s"),
		Kind:   model.KindSupMCU,
	}
}

// TelemetryCountDefinition describes the item holding the SupMCU and module
// telemetry counts.
func TelemetryCountDefinition() model.TelemetryDefinition {
	return model.TelemetryDefinition{
		Name:   "Telemetry Counts",
		Format: telemetry.ParseFormat("ss"),
		Idx:    idxTelemetryCounts,
		Kind:   model.KindSupMCU,
	}
}

// CommandCountDefinition describes the item holding the command count.
func CommandCountDefinition() model.TelemetryDefinition {
	return model.TelemetryDefinition{
		Name:   "Command Count",
		Format: telemetry.ParseFormat("s"),
		Idx:    idxCommandCount,
		Kind:   model.KindSupMCU,
	}
}

// CommandNameDefinition describes the "SUP:COM?" response.
func CommandNameDefinition() model.TelemetryDefinition {
	return stringMetadata("Command Name", 0, 33)
}

// McuIDDefinition describes the reserved MCU id item.
func McuIDDefinition() model.TelemetryDefinition {
	return model.TelemetryDefinition{
		Name:   "MCU Id",
		Format: telemetry.ParseFormat("u"),
		Idx:    idxMcuID,
		Kind:   model.KindSupMCU,
	}
}

func stringMetadata(name string, idx, length int) model.TelemetryDefinition {
	return model.TelemetryDefinition{
		Name:   name,
		Format: telemetry.ParseFormat("S"),
		Length: &length,
		Idx:    idx,
		Kind:   model.KindSupMCU,
	}
}

// commandPrefixAliases maps firmware names whose command prefix differs from
// the leading token of the version string.
var commandPrefixAliases = map[string]string{
	"GPSRM": "GPS",
	"RHM3":  "RHM",
}

// ParseCommandPrefix extracts a module's command prefix from its firmware
// version string: the leading token up to the first space or hyphen, with
// known aliases applied.
func ParseCommandPrefix(version string) (string, error) {
	name, _, _ := strings.Cut(version, " ")
	name, _, _ = strings.Cut(name, "-")
	if name == "" {
		return "", &VersionParseError{Version: version}
	}
	if alias, ok := commandPrefixAliases[name]; ok {
		return alias, nil
	}
	return name, nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// NormalizeTelemetryName turns a raw telemetry name into its canonical
// lookup key: runs of non-alphanumeric characters become single
// underscores, everything is lowercased and one trailing underscore is
// stripped. "Cell Voltage 1" becomes "cell_voltage_1".
func NormalizeTelemetryName(raw string) string {
	name := nonAlphanumeric.ReplaceAllString(raw, "_")
	name = strings.ToLower(name)
	return strings.TrimSuffix(name, "_")
}

// Discover walks the module's catalog over the bus and attaches the
// resulting definition: identity from the firmware version, every telemetry
// item field-by-field, the command list, and (best effort) the MCU type.
// Any existing definition's address and response delay are kept.
func (m *Module) Discover(ctx context.Context) error {
	if m.definition == nil {
		d := model.NewModuleDefinition(m.address)
		m.definition = &d
	}
	m.logDiscoveryState("module", "", "discovering", "")

	if err := m.discoverIdentity(ctx); err != nil {
		return err
	}
	if err := m.discoverTelemetry(ctx); err != nil {
		return err
	}
	// The DCPS firmware locks up on command enumeration.
	if m.definition.Name != "DCPS" {
		if err := m.discoverCommands(ctx); err != nil {
			return err
		}
	}
	m.discoverMcu(ctx)

	m.logDiscoveryState("module", "discovering", "discovered", m.definition.String())
	return nil
}

// discoverIdentity reads the firmware version and derives the command
// prefix and simulation capability from it.
func (m *Module) discoverIdentity(ctx context.Context) error {
	def := VersionDefinition()
	tlm, err := m.GetTelemetryByDef(ctx, &def)
	if err != nil {
		return err
	}
	version, err := stringValue(tlm)
	if err != nil {
		return err
	}

	prefix, err := ParseCommandPrefix(version)
	if err != nil {
		return err
	}
	m.definition.Name = prefix
	m.definition.Simulatable = strings.Contains(version, "(on STM)") ||
		strings.Contains(version, "(on QSM)")

	m.logDiscoveryState("identity", "", prefix, version)
	return nil
}

// discoverTelemetry reads the two item counts and then every item's
// metadata.
func (m *Module) discoverTelemetry(ctx context.Context) error {
	def := TelemetryCountDefinition()
	tlm, err := m.GetTelemetryByDef(ctx, &def)
	if err != nil {
		return err
	}
	if len(tlm.Values) != 2 {
		return &TelemetryRequestError{
			Address: m.address,
			Err:     fmt.Errorf("telemetry counts returned %d values, want 2", len(tlm.Values)),
		}
	}
	supCount := int(tlm.Values[0].Uint)
	modCount := int(tlm.Values[1].Uint)
	m.logDiscoveryState("catalog", "", "counted",
		fmt.Sprintf("%d SupMCU, %d module items", supCount, modCount))

	for i := 0; i < supCount; i++ {
		item, err := m.discoverTelemetryItem(ctx, model.KindSupMCU, i)
		if err != nil {
			return err
		}
		m.definition.Telemetry = append(m.definition.Telemetry, item)
	}
	for i := 0; i < modCount; i++ {
		item, err := m.discoverTelemetryItem(ctx, model.KindModule, i)
		if err != nil {
			return err
		}
		m.definition.Telemetry = append(m.definition.Telemetry, item)
	}
	return nil
}

// discoverTelemetryItem reads one item's name and format, its payload
// length when the format alone does not determine it, and its default
// simulation values when the module simulates.
func (m *Module) discoverTelemetryItem(ctx context.Context, kind model.TelemetryKind, idx int) (model.TelemetryDefinition, error) {
	item := model.TelemetryDefinition{Idx: idx, Kind: kind}
	base, err := m.TelemetryCommand(&item)
	if err != nil {
		return item, err
	}

	nameDef := NameDefinition()
	tlm, err := m.getMetadata(ctx, base+",NAME", &nameDef)
	if err != nil {
		return item, err
	}
	rawName, err := stringValue(tlm)
	if err != nil {
		return item, err
	}
	item.Name = NormalizeTelemetryName(rawName)

	formatDef := FormatDefinition()
	tlm, err = m.getMetadata(ctx, base+",FORMAT", &formatDef)
	if err != nil {
		return item, err
	}
	formatStr, err := stringValue(tlm)
	if err != nil {
		return item, err
	}
	item.Format = telemetry.ParseFormat(formatStr)

	if _, ok := item.Format.ByteLength(); !ok {
		lengthDef := LengthDefinition()
		tlm, err = m.getMetadata(ctx, base+",LENGTH", &lengthDef)
		if err != nil {
			return item, err
		}
		length := int(tlm.Values[0].Uint)
		item.Length = &length
	}

	if m.definition.Simulatable {
		simDef := SimulatableDefinition()
		tlm, err = m.getMetadata(ctx, base+",SIMULATABLE", &simDef)
		if err != nil {
			return item, err
		}
		if tlm.Values[0].Uint != 0 {
			full, err := m.GetTelemetryByDef(ctx, &item)
			if err != nil {
				return item, err
			}
			item.DefaultSimValue = full.Values
		}
	}

	return item, nil
}

// discoverCommands reads the command count and every command's name.
// Command names are kept verbatim.
func (m *Module) discoverCommands(ctx context.Context) error {
	def := CommandCountDefinition()
	tlm, err := m.GetTelemetryByDef(ctx, &def)
	if err != nil {
		return err
	}
	count := int(tlm.Values[0].Uint)

	for i := 0; i < count; i++ {
		nameDef := CommandNameDefinition()
		tlm, err := m.getMetadata(ctx, fmt.Sprintf("SUP:COM? %d", i), &nameDef)
		if err != nil {
			return err
		}
		name, err := stringValue(tlm)
		if err != nil {
			return err
		}
		m.definition.Commands = append(m.definition.Commands, model.CommandDefinition{
			Name: name,
			Idx:  i,
		})
	}
	return nil
}

// discoverMcu reads the reserved MCU id item. Older firmware does not
// implement it, so failures only log and leave the type unknown.
func (m *Module) discoverMcu(ctx context.Context) {
	def := McuIDDefinition()
	tlm, err := m.GetTelemetryByDef(ctx, &def)
	if err != nil {
		m.logError(log.LayerDiscovery, err, "mcu id")
		return
	}
	mcu, err := model.ParseMcuType(uint8(tlm.Values[0].Uint))
	if err != nil {
		m.logError(log.LayerDiscovery, err, "mcu id")
		return
	}
	m.definition.Mcu = mcu
}

// getMetadata runs a request/response cycle for a discovery command whose
// response layout comes from a fixed metadata definition rather than the
// module's catalog.
func (m *Module) getMetadata(ctx context.Context, cmd string, def *model.TelemetryDefinition) (*Telemetry, error) {
	if err := m.SendCommand(cmd); err != nil {
		return nil, err
	}
	if err := sleepContext(ctx, m.responseDelay()); err != nil {
		return nil, err
	}
	return m.readTelemetrySafe(ctx, def)
}

// stringValue extracts the single string a metadata response carries.
func stringValue(tlm *Telemetry) (string, error) {
	if len(tlm.Values) != 1 || tlm.Values[0].Type != telemetry.TypeStr {
		return "", &TelemetryRequestError{
			Err: fmt.Errorf("%q returned no string value", tlm.Definition.Name),
		}
	}
	return tlm.Values[0].Str, nil
}

func (m *Module) logDiscoveryState(entity, oldState, newState, reason string) {
	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerDiscovery,
		Category:  log.CategoryState,
		Address:   m.address,
		Module:    m.Name(),
		State: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
