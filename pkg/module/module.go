package module

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supmcu-protocol/supmcu-go/pkg/log"
	"github.com/supmcu-protocol/supmcu-go/pkg/model"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
	"github.com/supmcu-protocol/supmcu-go/pkg/transport"
)

const (
	// DefaultMaxRetries is the default not-ready retry budget.
	DefaultMaxRetries = 5

	// RetryIncrement is the linear backoff step added per retry attempt on
	// top of the module's response delay.
	RetryIncrement = 100 * time.Millisecond
)

// Telemetry is one decoded telemetry response.
type Telemetry struct {
	Definition model.TelemetryDefinition
	Header     telemetry.Header
	Values     []telemetry.Value
}

// Module is the handle for one bus module. It owns its transport endpoint
// exclusively and serializes all traffic to the module; callers must not
// share a handle across goroutines without external coordination.
type Module struct {
	transport  transport.Transport
	codec      *telemetry.Codec
	logger     log.Logger
	definition *model.ModuleDefinition
	address    uint16

	// maxRetries is the not-ready retry budget; nil disables retries.
	maxRetries *int

	// delayOverride masks the definition's response delay when set.
	delayOverride *float64

	// lastCmd is the most recently sent command, newline included, resent
	// verbatim on not-ready retries.
	lastCmd string

	// exchangeID ties the events of one request/response cycle together.
	exchangeID string
}

// Option configures a Module.
type Option func(*Module)

// WithLogger attaches a bus event logger.
func WithLogger(l log.Logger) Option {
	return func(m *Module) { m.logger = log.OrNoop(l) }
}

// WithChecksumValidation makes the handle validate response footers.
func WithChecksumValidation() Option {
	return func(m *Module) { m.codec = telemetry.NewCodec(telemetry.WithChecksumValidation()) }
}

// WithMaxRetries sets the not-ready retry budget.
func WithMaxRetries(n int) Option {
	return func(m *Module) { m.maxRetries = &n }
}

// WithoutRetries disables not-ready retries; a cleared ready flag fails the
// request immediately.
func WithoutRetries() Option {
	return func(m *Module) { m.maxRetries = nil }
}

// WithResponseDelay overrides the response delay in seconds, regardless of
// what the module's definition says. An explicit SetResponseDelay clears
// the override.
func WithResponseDelay(seconds float64) Option {
	return func(m *Module) { m.delayOverride = &seconds }
}

// WithDefinition attaches a previously discovered definition.
func WithDefinition(def model.ModuleDefinition) Option {
	return func(m *Module) { m.SetDefinition(def) }
}

// New creates a handle over the given transport endpoint. Without options
// the handle has no definition, skips checksum validation and retries
// not-ready responses up to DefaultMaxRetries times.
func New(t transport.Transport, opts ...Option) *Module {
	retries := DefaultMaxRetries
	m := &Module{
		transport:  t,
		codec:      telemetry.NewCodec(),
		logger:     log.NoopLogger{},
		address:    t.Address(),
		maxRetries: &retries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Address returns the module's bus address.
func (m *Module) Address() uint16 {
	return m.address
}

// Name returns the module's command prefix, or "" when no definition is
// attached.
func (m *Module) Name() string {
	if m.definition == nil {
		return ""
	}
	return m.definition.Name
}

// Matches reports whether the given definition describes this module, by
// bus address or by command prefix.
func (m *Module) Matches(def model.ModuleDefinition) bool {
	if def.Address == m.address {
		return true
	}
	return def.Name != "" && strings.EqualFold(def.Name, m.Name())
}

// Definition returns the attached definition, or nil.
func (m *Module) Definition() *model.ModuleDefinition {
	return m.definition
}

// SetDefinition attaches a definition, replacing any previous one.
func (m *Module) SetDefinition(def model.ModuleDefinition) {
	m.definition = &def
	m.address = def.Address
}

// MaxRetries returns the not-ready retry budget, or nil when retries are
// disabled.
func (m *Module) MaxRetries() *int {
	return m.maxRetries
}

// Close releases the transport endpoint.
func (m *Module) Close() error {
	return m.transport.Close()
}

func (m *Module) requireDefinition() (*model.ModuleDefinition, error) {
	if m.definition == nil {
		return nil, ErrMissingDefinition
	}
	return m.definition, nil
}

// responseDelay returns the module's processing latency as a duration.
func (m *Module) responseDelay() time.Duration {
	seconds := model.DefaultResponseDelay
	if m.definition != nil {
		seconds = m.definition.ResponseDelay
	}
	if m.delayOverride != nil {
		seconds = *m.delayOverride
	}
	return time.Duration(seconds * float64(time.Second))
}

// SendCommand writes a command to the module. A trailing newline is
// appended; the command is recorded for not-ready retries.
func (m *Module) SendCommand(cmd string) error {
	m.exchangeID = uuid.New().String()
	m.lastCmd = cmd + "\n"
	return m.write(m.lastCmd)
}

// resend rewrites the recorded last command without starting a new
// exchange.
func (m *Module) resend() error {
	return m.write(m.lastCmd)
}

func (m *Module) write(cmd string) error {
	if err := m.transport.Write([]byte(cmd)); err != nil {
		werr := &CommandError{Address: m.address, Err: err}
		m.logError(log.LayerTransport, werr, "write")
		return werr
	}
	m.logger.Log(log.Event{
		Timestamp:  time.Now(),
		ExchangeID: m.exchangeID,
		Direction:  log.DirectionOut,
		Layer:      log.LayerProtocol,
		Category:   log.CategoryMessage,
		Address:    m.address,
		Module:     m.Name(),
		Command:    strings.TrimSuffix(cmd, "\n"),
	})
	return nil
}

// TelemetryCommand builds the request command for a telemetry item. SupMCU
// items use the fixed "SUP" prefix; module items need a definition for the
// module's own prefix.
func (m *Module) TelemetryCommand(def *model.TelemetryDefinition) (string, error) {
	prefix := "SUP"
	if def.Kind == model.KindModule {
		d, err := m.requireDefinition()
		if err != nil {
			return "", err
		}
		prefix = d.Name
	}
	return fmt.Sprintf("%s:TEL? %d", prefix, def.Idx), nil
}

// RequestTelemetry sends the request command for a telemetry item without
// waiting for the response.
func (m *Module) RequestTelemetry(def *model.TelemetryDefinition) error {
	cmd, err := m.TelemetryCommand(def)
	if err != nil {
		return err
	}
	return m.SendCommand(cmd)
}

// ResponseSize returns the full frame size a telemetry item's response
// occupies on the wire.
func (m *Module) ResponseSize(def *model.TelemetryDefinition) (int, error) {
	payload, ok := def.PayloadLength()
	if !ok {
		return 0, fmt.Errorf("telemetry %q has neither a fixed-width format nor a length", def.Name)
	}
	return telemetry.HeaderSize + payload + telemetry.FooterSize, nil
}

// ReadTelemetryResponse reads and decodes one response frame for a
// telemetry item. A cleared ready flag returns a NotReadyError.
func (m *Module) ReadTelemetryResponse(def *model.TelemetryDefinition) (*Telemetry, error) {
	size, err := m.ResponseSize(def)
	if err != nil {
		return nil, &TelemetryRequestError{Address: m.address, Err: err}
	}
	frame := make([]byte, size)
	if err := m.transport.Read(frame); err != nil {
		rerr := &TelemetryRequestError{Address: m.address, Err: err}
		m.logError(log.LayerTransport, rerr, "read")
		return nil, rerr
	}

	header, values, err := m.codec.DecodeResponse(frame, def.Format)
	if err != nil {
		derr := &TelemetryRequestError{Address: m.address, Err: err}
		m.logError(log.LayerProtocol, derr, "decode")
		return nil, derr
	}

	m.logger.Log(log.Event{
		Timestamp:  time.Now(),
		ExchangeID: m.exchangeID,
		Direction:  log.DirectionIn,
		Layer:      log.LayerProtocol,
		Category:   log.CategoryMessage,
		Address:    m.address,
		Module:     m.Name(),
		Frame:      log.NewFrameEvent(frame, header.Ready),
	})

	if !header.Ready {
		return nil, &NotReadyError{
			Address: m.address,
			Command: strings.TrimSuffix(m.lastCmd, "\n"),
		}
	}
	return &Telemetry{Definition: *def, Header: header, Values: values}, nil
}

// readTelemetrySafe reads a response and retries not-ready responses within
// the configured budget, resending the last command and backing off
// linearly before each re-read. Errors other than NotReadyError are never
// retried.
func (m *Module) readTelemetrySafe(ctx context.Context, def *model.TelemetryDefinition) (*Telemetry, error) {
	tlm, err := m.ReadTelemetryResponse(def)
	var notReady *NotReadyError
	if err == nil || !errors.As(err, &notReady) || m.maxRetries == nil {
		return tlm, err
	}

	budget := *m.maxRetries
	for attempt := 0; attempt < budget; attempt++ {
		delay := m.responseDelay() + RetryIncrement*time.Duration(attempt)
		m.logger.Log(log.Event{
			Timestamp:  time.Now(),
			ExchangeID: m.exchangeID,
			Direction:  log.DirectionOut,
			Layer:      log.LayerProtocol,
			Category:   log.CategoryRetry,
			Address:    m.address,
			Module:     m.Name(),
			Command:    strings.TrimSuffix(m.lastCmd, "\n"),
			Retry:      &log.RetryEvent{Attempt: attempt, Budget: budget, Delay: delay},
		})

		if rerr := m.resend(); rerr != nil {
			return nil, rerr
		}
		if serr := sleepContext(ctx, delay); serr != nil {
			return nil, serr
		}

		tlm, err = m.ReadTelemetryResponse(def)
		if err == nil || !errors.As(err, &notReady) {
			return tlm, err
		}
	}
	return nil, err
}

// GetTelemetryByDef performs a full request/response cycle for one
// telemetry item: send, wait the module's response delay, read with
// not-ready retries.
func (m *Module) GetTelemetryByDef(ctx context.Context, def *model.TelemetryDefinition) (*Telemetry, error) {
	if err := m.RequestTelemetry(def); err != nil {
		return nil, err
	}
	if err := sleepContext(ctx, m.responseDelay()); err != nil {
		return nil, err
	}
	return m.readTelemetrySafe(ctx, def)
}

// GetTelemetry fetches the telemetry item at (kind, idx) per the module's
// definition.
func (m *Module) GetTelemetry(ctx context.Context, kind model.TelemetryKind, idx int) (*Telemetry, error) {
	d, err := m.requireDefinition()
	if err != nil {
		return nil, err
	}
	def, ok := d.FindTelemetry(kind, idx)
	if !ok {
		return nil, &TelemetryIndexError{Kind: kind, Idx: idx}
	}
	return m.GetTelemetryByDef(ctx, def)
}

// GetTelemetryByName fetches the telemetry item with the given name.
func (m *Module) GetTelemetryByName(ctx context.Context, name string) (*Telemetry, error) {
	d, err := m.requireDefinition()
	if err != nil {
		return nil, err
	}
	def, ok := d.FindTelemetryByName(name)
	if !ok {
		return nil, &UnknownTelemetryNameError{Name: name}
	}
	return m.GetTelemetryByDef(ctx, def)
}

// GetAllTelemetry fetches every telemetry item in the module's definition,
// keyed by item name. Items that fail to fetch map to a single string value
// carrying the error text, so one flaky item does not lose a whole sweep.
func (m *Module) GetAllTelemetry(ctx context.Context) (map[string][]telemetry.Value, error) {
	d, err := m.requireDefinition()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]telemetry.Value, len(d.Telemetry))
	for i := range d.Telemetry {
		def := &d.Telemetry[i]
		tlm, err := m.GetTelemetryByDef(ctx, def)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			out[def.Name] = []telemetry.Value{telemetry.Str(err.Error())}
			continue
		}
		out[def.Name] = tlm.Values
	}
	return out, nil
}

// GetTelemetryByNames fetches the named telemetry items. Every name must
// exist in the definition; unknown names fail the whole call before any bus
// traffic. Fetch failures map to error-text values like GetAllTelemetry.
func (m *Module) GetTelemetryByNames(ctx context.Context, names []string) (map[string][]telemetry.Value, error) {
	d, err := m.requireDefinition()
	if err != nil {
		return nil, err
	}
	defs := make([]*model.TelemetryDefinition, 0, len(names))
	for _, name := range names {
		def, ok := d.FindTelemetryByName(name)
		if !ok {
			return nil, &UnknownTelemetryNameError{Name: name}
		}
		defs = append(defs, def)
	}

	out := make(map[string][]telemetry.Value, len(defs))
	for _, def := range defs {
		tlm, err := m.GetTelemetryByDef(ctx, def)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			out[def.Name] = []telemetry.Value{telemetry.Str(err.Error())}
			continue
		}
		out[def.Name] = tlm.Values
	}
	return out, nil
}

// SetResponseDelay updates the module's response delay in seconds.
func (m *Module) SetResponseDelay(seconds float64) error {
	d, err := m.requireDefinition()
	if err != nil {
		return err
	}
	old := d.ResponseDelay
	d.ResponseDelay = seconds
	m.delayOverride = nil
	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerProtocol,
		Category:  log.CategoryState,
		Address:   m.address,
		Module:    d.Name,
		State: &log.StateChangeEvent{
			Entity:   "response_delay",
			OldState: fmt.Sprintf("%gs", old),
			NewState: fmt.Sprintf("%gs", seconds),
		},
	})
	return nil
}

func (m *Module) logError(layer log.Layer, err error, context string) {
	m.logger.Log(log.Event{
		Timestamp:  time.Now(),
		ExchangeID: m.exchangeID,
		Direction:  log.DirectionIn,
		Layer:      layer,
		Category:   log.CategoryError,
		Address:    m.address,
		Module:     m.Name(),
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

// sleepContext waits for d or the context, whichever ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
