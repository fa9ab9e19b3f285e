package log

import (
	"time"
)

// Event is one captured bus protocol event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ExchangeID ties together the command, waits, retries and response
	// of a single request/response exchange (UUID).
	ExchangeID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates bus data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Address is the module's bus address.
	Address uint16 `cbor:"6,keyasint,omitempty"`

	// Module is the module's command prefix, when known.
	Module string `cbor:"7,keyasint,omitempty"`

	// Command is the command text involved, without its trailing newline.
	Command string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (at most one is set).
	Frame *FrameEvent       `cbor:"9,keyasint,omitempty"`  // raw response frames
	Retry *RetryEvent       `cbor:"10,keyasint,omitempty"` // not-ready retries
	State *StateChangeEvent `cbor:"11,keyasint,omitempty"` // discovery/catalog state
	Error *ErrorEventData   `cbor:"12,keyasint,omitempty"` // failures at any layer
}

// Direction indicates the direction of bus data flow.
type Direction uint8

const (
	// DirectionIn is data read from a module.
	DirectionIn Direction = 0
	// DirectionOut is data written to a module.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the raw bus device layer.
	LayerTransport Layer = 0
	// LayerProtocol is the command/response engine.
	LayerProtocol Layer = 1
	// LayerDiscovery is the catalog discovery walk.
	LayerDiscovery Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerProtocol:
		return "PROTOCOL"
	case LayerDiscovery:
		return "DISCOVERY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a command write or response read.
	CategoryMessage Category = 0
	// CategoryRetry is a not-ready retry.
	CategoryRetry Category = 1
	// CategoryState is a state change (discovery progress, config update).
	CategoryState Category = 2
	// CategoryError is a failure.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryRetry:
		return "RETRY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameDataSize is the largest frame payload captured verbatim; longer
// frames are truncated in the event to bound capture-file growth.
const MaxFrameDataSize = 4096

// FrameEvent captures a raw response frame.
type FrameEvent struct {
	// Size is the full frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the frame bytes, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated reports whether Data was cut at MaxFrameDataSize.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Ready is the decoded readiness flag, when the header parsed.
	Ready bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent from raw frame bytes, truncating the
// captured data at MaxFrameDataSize.
func NewFrameEvent(frame []byte, ready bool) *FrameEvent {
	ev := &FrameEvent{Size: len(frame), Data: frame, Ready: ready}
	if len(frame) > MaxFrameDataSize {
		ev.Data = frame[:MaxFrameDataSize]
		ev.Truncated = true
	}
	return ev
}

// RetryEvent captures one not-ready retry.
type RetryEvent struct {
	// Attempt is the zero-based retry attempt number.
	Attempt int `cbor:"1,keyasint"`

	// Budget is the configured maximum number of retries.
	Budget int `cbor:"2,keyasint"`

	// Delay is the backoff wait before the re-read.
	Delay time.Duration `cbor:"3,keyasint"`
}

// StateChangeEvent captures discovery or catalog state transitions.
type StateChangeEvent struct {
	// Entity is what changed (e.g. "module", "telemetry", "catalog").
	Entity string `cbor:"1,keyasint"`

	// OldState and NewState describe the transition.
	OldState string `cbor:"2,keyasint,omitempty"`
	NewState string `cbor:"3,keyasint"`

	// Reason gives optional context.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures a failure at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context is optional free-form context (e.g. the phase of discovery).
	Context string `cbor:"3,keyasint,omitempty"`
}
