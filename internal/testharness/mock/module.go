package mock

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/supmcu-protocol/supmcu-go/pkg/model"
	"github.com/supmcu-protocol/supmcu-go/pkg/module"
	"github.com/supmcu-protocol/supmcu-go/pkg/telemetry"
	"github.com/supmcu-protocol/supmcu-go/pkg/transport"
)

// SimulatedModule is an in-memory bus module. Each command write stages the
// matching response frame; the next read returns it. Responses follow the
// definition the module was built from, so a discovery walk against a
// simulated module reconstructs that definition.
type SimulatedModule struct {
	mu      sync.Mutex
	rng     *rand.Rand
	def     model.ModuleDefinition
	address uint16

	// version is the firmware version string served for item 0.
	version string

	// notReady forces the next n responses to report not ready.
	notReady int

	checksum bool
	next     []byte

	writes int
	reads  int
}

// Option configures a SimulatedModule.
type Option func(*SimulatedModule)

// WithSeed makes the module's random content deterministic.
func WithSeed(seed int64) Option {
	return func(s *SimulatedModule) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithNotReadyReads makes the first n responses report not ready.
func WithNotReadyReads(n int) Option {
	return func(s *SimulatedModule) { s.notReady = n }
}

// WithChecksum makes the module fill response footers with real checksums.
func WithChecksum() Option {
	return func(s *SimulatedModule) { s.checksum = true }
}

// WithAddress overrides the bus address from the definition.
func WithAddress(addr uint16) Option {
	return func(s *SimulatedModule) { s.address = addr }
}

// WithVersion overrides the firmware version string served for item 0.
func WithVersion(version string) Option {
	return func(s *SimulatedModule) { s.version = version }
}

// NewSimulatedModule creates a simulated module backed by def. The default
// firmware version round-trips the definition's name and simulation
// capability through a discovery walk.
func NewSimulatedModule(def model.ModuleDefinition, opts ...Option) *SimulatedModule {
	version := fmt.Sprintf("%s firmware v1.0", def.Name)
	if def.Simulatable {
		version += " (on STM)"
	}
	s := &SimulatedModule{
		rng:     rand.New(rand.NewSource(1)),
		def:     def,
		address: def.Address,
		version: version,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Definition returns the backing definition.
func (s *SimulatedModule) Definition() model.ModuleDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def
}

// SetDefinition replaces the backing definition.
func (s *SimulatedModule) SetDefinition(def model.ModuleDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = def
}

// Writes returns the number of commands written so far.
func (s *SimulatedModule) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Reads returns the number of responses read so far.
func (s *SimulatedModule) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Address returns the module's bus address.
func (s *SimulatedModule) Address() uint16 {
	return s.address
}

// Close is a no-op.
func (s *SimulatedModule) Close() error {
	return nil
}

// Write parses a command and stages the matching response frame.
func (s *SimulatedModule) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++
	cmd := strings.TrimSpace(string(data))
	frame, err := s.respond(cmd)
	if err != nil {
		return err
	}
	s.next = frame
	return nil
}

// Read returns the staged response frame. Reading without a staged frame
// fails, as reading a real module without a pending query returns garbage.
func (s *SimulatedModule) Read(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.next == nil {
		return errors.New("read with no pending command")
	}
	copy(buf, s.next)
	s.next = nil
	return nil
}

func (s *SimulatedModule) respond(cmd string) ([]byte, error) {
	prefix, rest, ok := strings.Cut(cmd, ":")
	if !ok {
		return nil, fmt.Errorf("malformed command %q", cmd)
	}
	kind := model.KindModule
	if prefix == "SUP" {
		kind = model.KindSupMCU
	}

	switch {
	case strings.HasPrefix(rest, "TEL? "):
		arg := strings.TrimPrefix(rest, "TEL? ")
		base, suffix, hasSuffix := strings.Cut(arg, ",")
		idx, err := strconv.Atoi(strings.TrimSpace(base))
		if err != nil {
			return nil, fmt.Errorf("malformed telemetry index in %q", cmd)
		}
		if hasSuffix {
			return s.metadataResponse(kind, idx, strings.ToUpper(strings.TrimSpace(suffix)))
		}
		return s.telemetryResponse(kind, idx)

	case strings.HasPrefix(rest, "COM? "):
		idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(rest, "COM? ")))
		if err != nil {
			return nil, fmt.Errorf("malformed command index in %q", cmd)
		}
		return s.commandNameResponse(idx)

	default:
		// Non-query commands are accepted and produce no response.
		return nil, nil
	}
}

// telemetryResponse builds the frame for a plain "TEL?" query. The reserved
// SupMCU indices are synthesized from the definition itself; everything
// else serves the item's default simulation values, or random values
// matching its format.
func (s *SimulatedModule) telemetryResponse(kind model.TelemetryKind, idx int) ([]byte, error) {
	if kind == model.KindSupMCU {
		switch idx {
		case 0:
			return s.frame([]byte(s.version), payloadLen(module.VersionDefinition())), nil
		case 14:
			counts := telemetry.Format{telemetry.TypeUint16, telemetry.TypeUint16}
			payload := counts.Encode([]telemetry.Value{
				telemetry.U16(uint16(len(s.def.SupMCUTelemetry()))),
				telemetry.U16(uint16(len(s.def.ModuleTelemetry()))),
			})
			return s.frame(payload, len(payload)), nil
		case 17:
			payload := telemetry.U16(uint16(len(s.def.Commands))).Bytes()
			return s.frame(payload, len(payload)), nil
		case 19:
			return s.frame([]byte{mcuID(s.def.Mcu)}, 1), nil
		}
	}

	item, ok := s.def.FindTelemetry(kind, idx)
	if !ok {
		return nil, fmt.Errorf("no %s telemetry at index %d", kind, idx)
	}
	values := item.DefaultSimValue
	if values == nil {
		values = item.Format.RandomValues(s.rng)
	}
	length, ok := item.PayloadLength()
	if !ok {
		return nil, fmt.Errorf("telemetry %q has no payload length", item.Name)
	}
	return s.frame(item.Format.Encode(values), length), nil
}

// metadataResponse builds the frame for a suffixed metadata query.
func (s *SimulatedModule) metadataResponse(kind model.TelemetryKind, idx int, suffix string) ([]byte, error) {
	item, ok := s.def.FindTelemetry(kind, idx)
	if !ok {
		return nil, fmt.Errorf("no %s telemetry at index %d", kind, idx)
	}

	switch suffix {
	case "NAME":
		return s.frame([]byte(item.Name), payloadLen(module.NameDefinition())), nil
	case "FORMAT":
		return s.frame([]byte(item.Format.String()), payloadLen(module.FormatDefinition())), nil
	case "LENGTH":
		length, ok := item.PayloadLength()
		if !ok {
			return nil, fmt.Errorf("telemetry %q has no payload length", item.Name)
		}
		return s.frame(telemetry.U16(uint16(length)).Bytes(), 2), nil
	case "SIMULATABLE":
		var sim uint16
		if item.Simulatable() {
			sim = 1
		}
		return s.frame(telemetry.U16(sim).Bytes(), 2), nil
	default:
		return nil, fmt.Errorf("unknown metadata suffix %q", suffix)
	}
}

// commandNameResponse builds the frame for a "SUP:COM?" query.
func (s *SimulatedModule) commandNameResponse(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(s.def.Commands) {
		return nil, fmt.Errorf("no command at index %d", idx)
	}
	return s.frame([]byte(s.def.Commands[idx].Name), payloadLen(module.CommandNameDefinition())), nil
}

// frame wraps a payload in header and footer, padding or truncating the
// payload to the expected length first.
func (s *SimulatedModule) frame(payload []byte, length int) []byte {
	ready := true
	if s.notReady > 0 {
		s.notReady--
		ready = false
	}
	header := telemetry.Header{Ready: ready, Timestamp: s.rng.Uint32()}

	buf := make([]byte, telemetry.HeaderSize+length)
	copy(buf, header.Bytes())
	copy(buf[telemetry.HeaderSize:], payload)
	return telemetry.AppendFooter(buf, s.checksum)
}

func payloadLen(def model.TelemetryDefinition) int {
	n, ok := def.PayloadLength()
	if !ok {
		return 0
	}
	return n
}

// mcuID maps an MCU type back to its reported id byte.
func mcuID(m model.McuType) uint8 {
	switch m {
	case model.McuPIC24EP256MC206:
		return 1
	case model.McuPIC24EP512MC206:
		return 2
	default:
		return 0
	}
}

// Compile-time interface satisfaction check.
var _ transport.Transport = (*SimulatedModule)(nil)
