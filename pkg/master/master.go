package master

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/supmcu-protocol/supmcu-go/pkg/log"
	"github.com/supmcu-protocol/supmcu-go/pkg/model"
	"github.com/supmcu-protocol/supmcu-go/pkg/module"
	"github.com/supmcu-protocol/supmcu-go/pkg/persistence"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
)

// DefaultWorkers is the default fan-out pool size. Bus bandwidth, not CPU,
// bounds useful parallelism here.
const DefaultWorkers = 2

// ModuleNotFoundError indicates a module reference (name or address) that
// matches nothing in the catalog.
type ModuleNotFoundError struct {
	Ref string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("no module matching %q", e.Ref)
}

// Master coordinates all modules on one bus.
type Master struct {
	modules       []*module.Module
	store         *persistence.DefinitionStore
	workers       int
	recoverPanics bool
	logger        log.Logger
}

// Option configures a Master.
type Option func(*Master)

// WithWorkers sets the fan-out pool size.
func WithWorkers(n int) Option {
	return func(m *Master) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRecoverPanics converts panics in fan-out operations into per-module
// PanicError results instead of re-raising them.
func WithRecoverPanics() Option {
	return func(m *Master) { m.recoverPanics = true }
}

// WithLogger attaches a bus event logger to the master itself. Module
// handles carry their own loggers; attach at construction via
// module.WithLogger.
func WithLogger(l log.Logger) Option {
	return func(m *Master) { m.logger = log.OrNoop(l) }
}

// WithDefinitionStore attaches a definition store; catalog changes persist
// through it.
func WithDefinitionStore(store *persistence.DefinitionStore) Option {
	return func(m *Master) { m.store = store }
}

// WithDefinitionFile attaches a definition store backed by the file at
// path.
func WithDefinitionFile(path string) Option {
	return WithDefinitionStore(persistence.NewDefinitionStore(path))
}

// New creates a Master over the given module handles.
func New(modules []*module.Module, opts ...Option) *Master {
	m := &Master{
		modules: modules,
		workers: DefaultWorkers,
		logger:  log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Modules returns the module handles in catalog order.
func (m *Master) Modules() []*module.Module {
	return m.modules
}

// Close releases every module's transport endpoint, returning the first
// error encountered.
func (m *Master) Close() error {
	var first error
	for _, mod := range m.modules {
		if err := mod.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DiscoverModules runs catalog discovery on every module concurrently and
// persists the result when a definition store is attached. All modules run
// to completion and keep whatever they discovered; the returned error is
// the first module's failure in catalog order.
func (m *Master) DiscoverModules(ctx context.Context) error {
	results := ForEach(ctx, m, func(ctx context.Context, mod *module.Module) (struct{}, error) {
		return struct{}{}, mod.Discover(ctx)
	})

	var first error
	for _, r := range results {
		if r.Err != nil {
			first = fmt.Errorf("module %#04x: %w", r.Module.Address(), r.Err)
			break
		}
	}

	if m.store != nil {
		if err := m.SaveDefinitions(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Definitions returns the definitions of all modules that have one, in
// catalog order.
func (m *Master) Definitions() []model.ModuleDefinition {
	var defs []model.ModuleDefinition
	for _, mod := range m.modules {
		if d := mod.Definition(); d != nil {
			defs = append(defs, *d)
		}
	}
	return defs
}

// SaveDefinitions persists the current catalog through the attached store.
func (m *Master) SaveDefinitions() error {
	if m.store == nil {
		return errors.New("no definition store attached")
	}
	return m.store.SavePretty(m.Definitions())
}

// LoadDefinitions loads stored definitions and pairs them with the module
// handles positionally: the first stored entry attaches to the first
// handle and so on. Handles beyond the stored entries are left untouched;
// extra entries are ignored.
func (m *Master) LoadDefinitions() error {
	if m.store == nil {
		return errors.New("no definition store attached")
	}
	defs, err := m.store.Load()
	if err != nil {
		return err
	}
	for i, d := range defs {
		if i >= len(m.modules) {
			break
		}
		m.modules[i].SetDefinition(d)
	}
	return nil
}

// GetAllTelemetry sweeps every telemetry item of every module, fanned out
// across the worker pool.
func (m *Master) GetAllTelemetry(ctx context.Context) []Result[map[string][]telemetry.Value] {
	return ForEach(ctx, m, func(ctx context.Context, mod *module.Module) (map[string][]telemetry.Value, error) {
		return mod.GetAllTelemetry(ctx)
	})
}

// GetTelemetryByNames fetches the named telemetry items from every module
// that defines all of them; modules missing a name report the lookup error
// in their result.
func (m *Master) GetTelemetryByNames(ctx context.Context, names []string) []Result[map[string][]telemetry.Value] {
	return ForEach(ctx, m, func(ctx context.Context, mod *module.Module) (map[string][]telemetry.Value, error) {
		return mod.GetTelemetryByNames(ctx, names)
	})
}

// FindModule resolves a module reference: a command prefix
// (case-insensitive) or a bus address in decimal or 0x hex.
func (m *Master) FindModule(ref string) (*module.Module, error) {
	if addr, err := strconv.ParseUint(ref, 0, 16); err == nil {
		for _, mod := range m.modules {
			if mod.Address() == uint16(addr) {
				return mod, nil
			}
		}
		return nil, &ModuleNotFoundError{Ref: ref}
	}
	for _, mod := range m.modules {
		if strings.EqualFold(mod.Name(), ref) {
			return mod, nil
		}
	}
	return nil, &ModuleNotFoundError{Ref: ref}
}

// WithModule resolves a module reference and runs f on the handle.
func (m *Master) WithModule(ref string, f func(*module.Module) error) error {
	mod, err := m.FindModule(ref)
	if err != nil {
		return err
	}
	return f(mod)
}

// SendCommand sends a raw command to the referenced module.
func (m *Master) SendCommand(ref, cmd string) error {
	return m.WithModule(ref, func(mod *module.Module) error {
		return mod.SendCommand(cmd)
	})
}

// SetResponseDelay updates the referenced module's response delay and
// persists the catalog when a store is attached.
func (m *Master) SetResponseDelay(ref string, seconds float64) error {
	if err := m.WithModule(ref, func(mod *module.Module) error {
		return mod.SetResponseDelay(seconds)
	}); err != nil {
		return err
	}
	if m.store != nil {
		return m.SaveDefinitions()
	}
	return nil
}
