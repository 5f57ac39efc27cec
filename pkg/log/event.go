package log

import (
	"time"

	"github.com/panduza/panduza-go/pkg/wire"
)

// MaxFrameData is the number of raw bytes kept in a FrameEvent.
const MaxFrameData = 256

// Event is one trace record captured by a client session.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the client session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates frame flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Topic is the bus topic the event relates to.
	Topic string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Session/structure/attribute state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates a frame received from the bus.
	DirectionIn Direction = 0
	// DirectionOut indicates a frame published to the bus.
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
	// LayerTransport is the raw sample layer.
	LayerTransport Layer = 0
	// LayerWire is the decoded message layer.
	LayerWire Layer = 1
	// LayerAttribute is the attribute core layer.
	LayerAttribute Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerAttribute:
		return "ATTRIBUTE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a frame (raw or decoded).
	CategoryFrame Category = 0
	// CategoryDecodeError indicates an inbound frame that failed to decode.
	CategoryDecodeError Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates any other error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryDecodeError:
		return "DECODE_ERROR"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory converts a category name back to its value.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryFrame; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// ParseLayer converts a layer name back to its value.
func ParseLayer(s string) (Layer, bool) {
	for l := LayerTransport; l <= LayerAttribute; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent copies at most MaxFrameData bytes of data.
func NewFrameEvent(data []byte) *FrameEvent {
	f := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameData {
		f.Data = append([]byte(nil), data[:MaxFrameData]...)
		f.Truncated = true
	} else {
		f.Data = append([]byte(nil), data...)
	}
	return f
}

// MessageEvent captures a decoded frame at the wire layer.
type MessageEvent struct {
	// Kind is the payload variant.
	Kind wire.PayloadKind `cbor:"1,keyasint"`

	// Source is the producer id of the header.
	Source uint16 `cbor:"2,keyasint"`

	// Sequence is the header sequence number.
	Sequence uint16 `cbor:"3,keyasint"`

	// Value is a CBOR-compatible rendering of the payload.
	Value any `cbor:"4,keyasint,omitempty"`
}

// NewMessageEvent describes msg.
func NewMessageEvent(msg *wire.Message) *MessageEvent {
	return &MessageEvent{
		Kind:     msg.Payload.Kind(),
		Source:   msg.Header.Source,
		Sequence: msg.Header.Sequence,
		Value:    msg.Payload,
	}
}

// StateChangeEvent captures session, structure and attribute lifecycle.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a transport session state change.
	StateEntitySession StateEntity = 0
	// StateEntityStructure indicates a structure index update.
	StateEntityStructure StateEntity = 1
	// StateEntityAttribute indicates an attribute core lifecycle change.
	StateEntityAttribute StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityStructure:
		return "STRUCTURE"
	case StateEntityAttribute:
		return "ATTRIBUTE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
