package module_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supmcu-protocol/supmcu-go/internal/testharness/mock"
	"github.com/supmcu-protocol/supmcu-go/pkg/model"
	"github.com/supmcu-protocol/supmcu-go/pkg/module"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
)

func intPtr(n int) *int { return &n }

// testDefinition is a small battery module catalog. The response delay is
// zero to keep tests fast.
func testDefinition() model.ModuleDefinition {
	def := model.NewModuleDefinition(0x52)
	def.Name = "BM"
	def.ResponseDelay = 0
	def.Telemetry = []model.TelemetryDefinition{
		{Name: "firmware_version", Format: telemetry.ParseFormat("S"), Length: intPtr(77), Idx: 0, Kind: model.KindSupMCU},
		{Name: "battery_voltage", Format: telemetry.ParseFormat("f"), Idx: 0, Kind: model.KindModule,
			DefaultSimValue: []telemetry.Value{telemetry.F32(3.3)}},
		{Name: "cell_temps", Format: telemetry.ParseFormat("nn"), Idx: 1, Kind: model.KindModule,
			DefaultSimValue: []telemetry.Value{telemetry.I16(21), telemetry.I16(-3)}},
	}
	return def
}

func newTestModule(t *testing.T, opts ...module.Option) (*module.Module, *mock.SimulatedModule) {
	t.Helper()
	def := testDefinition()
	sim := mock.NewSimulatedModule(def)
	opts = append([]module.Option{module.WithDefinition(def)}, opts...)
	return module.New(sim, opts...), sim
}

func TestMatches(t *testing.T) {
	mod, _ := newTestModule(t)

	byAddress := model.NewModuleDefinition(0x52)
	assert.True(t, mod.Matches(byAddress))

	byName := model.NewModuleDefinition(0x60)
	byName.Name = "bm"
	assert.True(t, mod.Matches(byName))

	other := model.NewModuleDefinition(0x60)
	other.Name = "EPS"
	assert.False(t, mod.Matches(other))

	// An undiscovered handle never matches by empty name.
	bare := module.New(mock.NewSimulatedModule(testDefinition()))
	assert.False(t, bare.Matches(model.NewModuleDefinition(0x60)))
}

func TestTelemetryCommand(t *testing.T) {
	mod, _ := newTestModule(t)

	supItem := model.TelemetryDefinition{Idx: 3, Kind: model.KindSupMCU}
	cmd, err := mod.TelemetryCommand(&supItem)
	require.NoError(t, err)
	assert.Equal(t, "SUP:TEL? 3", cmd)

	modItem := model.TelemetryDefinition{Idx: 1, Kind: model.KindModule}
	cmd, err = mod.TelemetryCommand(&modItem)
	require.NoError(t, err)
	assert.Equal(t, "BM:TEL? 1", cmd)
}

func TestTelemetryCommandNeedsDefinition(t *testing.T) {
	sim := mock.NewSimulatedModule(testDefinition())
	mod := module.New(sim)

	modItem := model.TelemetryDefinition{Idx: 1, Kind: model.KindModule}
	_, err := mod.TelemetryCommand(&modItem)
	assert.ErrorIs(t, err, module.ErrMissingDefinition)
}

func TestResponseSize(t *testing.T) {
	mod, _ := newTestModule(t)

	fixed := model.TelemetryDefinition{Format: telemetry.ParseFormat("nn")}
	n, err := mod.ResponseSize(&fixed)
	require.NoError(t, err)
	assert.Equal(t, telemetry.HeaderSize+4+telemetry.FooterSize, n)

	variable := model.TelemetryDefinition{Format: telemetry.ParseFormat("S"), Length: intPtr(33)}
	n, err = mod.ResponseSize(&variable)
	require.NoError(t, err)
	assert.Equal(t, telemetry.HeaderSize+33+telemetry.FooterSize, n)

	broken := model.TelemetryDefinition{Format: telemetry.ParseFormat("S")}
	_, err = mod.ResponseSize(&broken)
	assert.Error(t, err)
}

func TestGetTelemetry(t *testing.T) {
	mod, _ := newTestModule(t)

	tlm, err := mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.NoError(t, err)
	assert.True(t, tlm.Header.Ready)
	assert.Equal(t, "battery_voltage", tlm.Definition.Name)
	assert.Equal(t, []telemetry.Value{telemetry.F32(3.3)}, tlm.Values)
}

func TestGetTelemetryUnknownIndex(t *testing.T) {
	mod, _ := newTestModule(t)

	_, err := mod.GetTelemetry(context.Background(), model.KindModule, 42)
	var idxErr *module.TelemetryIndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 42, idxErr.Idx)
}

func TestGetTelemetryByName(t *testing.T) {
	mod, _ := newTestModule(t)

	tlm, err := mod.GetTelemetryByName(context.Background(), "cell_temps")
	require.NoError(t, err)
	assert.Equal(t, []telemetry.Value{telemetry.I16(21), telemetry.I16(-3)}, tlm.Values)

	_, err = mod.GetTelemetryByName(context.Background(), "missing")
	var nameErr *module.UnknownTelemetryNameError
	require.ErrorAs(t, err, &nameErr)
}

func TestNotReadyRetriesUntilReady(t *testing.T) {
	def := testDefinition()
	sim := mock.NewSimulatedModule(def, mock.WithNotReadyReads(2))
	mod := module.New(sim, module.WithDefinition(def))

	tlm, err := mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.NoError(t, err)
	assert.True(t, tlm.Header.Ready)

	// One initial read plus two retry reads, each preceded by a resend.
	assert.Equal(t, 3, sim.Reads())
	assert.Equal(t, 3, sim.Writes())
}

func TestNotReadyBudgetExhausted(t *testing.T) {
	def := testDefinition()
	sim := mock.NewSimulatedModule(def, mock.WithNotReadyReads(10))
	mod := module.New(sim, module.WithDefinition(def), module.WithMaxRetries(2))

	_, err := mod.GetTelemetry(context.Background(), model.KindModule, 0)
	var notReady *module.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, "BM:TEL? 0", notReady.Command)

	// One initial read plus the full retry budget.
	assert.Equal(t, 3, sim.Reads())
}

func TestWithoutRetries(t *testing.T) {
	def := testDefinition()
	sim := mock.NewSimulatedModule(def, mock.WithNotReadyReads(1))
	mod := module.New(sim, module.WithDefinition(def), module.WithoutRetries())

	_, err := mod.GetTelemetry(context.Background(), model.KindModule, 0)
	var notReady *module.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, 1, sim.Reads())
	assert.Equal(t, 1, sim.Writes())
}

func TestChecksumValidation(t *testing.T) {
	def := testDefinition()

	// Module and simulated module both doing checksums succeeds.
	sim := mock.NewSimulatedModule(def, mock.WithChecksum())
	mod := module.New(sim, module.WithDefinition(def), module.WithChecksumValidation())
	_, err := mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.NoError(t, err)

	// A zero-padded footer fails a validating module.
	sim = mock.NewSimulatedModule(def)
	mod = module.New(sim, module.WithDefinition(def), module.WithChecksumValidation())
	_, err = mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, telemetry.ErrValidation))

	// A non-validating module ignores real checksums.
	sim = mock.NewSimulatedModule(def, mock.WithChecksum())
	mod = module.New(sim, module.WithDefinition(def))
	_, err = mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.NoError(t, err)
}

func TestGetAllTelemetry(t *testing.T) {
	mod, _ := newTestModule(t)

	values, err := mod.GetAllTelemetry(context.Background())
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, []telemetry.Value{telemetry.F32(3.3)}, values["battery_voltage"])
	assert.Contains(t, values, "firmware_version")
}

func TestGetAllTelemetryKeepsErrorItems(t *testing.T) {
	// The handle's definition has an item the module itself does not
	// serve; its error lands in the result instead of failing the sweep.
	def := testDefinition()
	sim := mock.NewSimulatedModule(def)

	withGhost := testDefinition()
	withGhost.Telemetry = append(withGhost.Telemetry, model.TelemetryDefinition{
		Name: "ghost", Format: telemetry.ParseFormat("u"), Idx: 9, Kind: model.KindModule,
	})
	mod := module.New(sim, module.WithDefinition(withGhost))

	values, err := mod.GetAllTelemetry(context.Background())
	require.NoError(t, err)
	require.Len(t, values, 4)
	assert.Equal(t, []telemetry.Value{telemetry.F32(3.3)}, values["battery_voltage"])

	ghost := values["ghost"]
	require.Len(t, ghost, 1)
	assert.Equal(t, telemetry.TypeStr, ghost[0].Type)
	assert.NotEmpty(t, ghost[0].Str)
}

func TestGetTelemetryByNames(t *testing.T) {
	mod, _ := newTestModule(t)

	values, err := mod.GetTelemetryByNames(context.Background(), []string{"battery_voltage"})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, []telemetry.Value{telemetry.F32(3.3)}, values["battery_voltage"])

	// Unknown names fail the whole call before any bus traffic.
	_, err = mod.GetTelemetryByNames(context.Background(), []string{"battery_voltage", "bogus"})
	var nameErr *module.UnknownTelemetryNameError
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, "bogus", nameErr.Name)
}

func TestSetResponseDelay(t *testing.T) {
	sim := mock.NewSimulatedModule(testDefinition())
	mod := module.New(sim)
	assert.ErrorIs(t, mod.SetResponseDelay(0.2), module.ErrMissingDefinition)

	mod, _ = newTestModule(t)
	require.NoError(t, mod.SetResponseDelay(0.2))
	assert.Equal(t, 0.2, mod.Definition().ResponseDelay)
}

func TestWithResponseDelayOverridesDefinition(t *testing.T) {
	def := testDefinition()
	def.ResponseDelay = 0.5
	sim := mock.NewSimulatedModule(def)
	mod := module.New(sim, module.WithDefinition(def), module.WithResponseDelay(0))

	start := time.Now()
	_, err := mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 300*time.Millisecond)

	// An explicit delay update clears the override.
	require.NoError(t, mod.SetResponseDelay(0.2))
	start = time.Now()
	_, err = mod.GetTelemetry(context.Background(), model.KindModule, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestGetTelemetryContextCancelled(t *testing.T) {
	mod, _ := newTestModule(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mod.GetTelemetry(ctx, model.KindModule, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
