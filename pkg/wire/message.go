package wire

import (
	"time"
)

// Timestamp is the wall-clock time a frame was produced.
//
// CBOR encoding:
//
//	{
//	  1: seconds,  // uint64: seconds since Unix epoch
//	  2: nanos     // uint32: nanoseconds within the second
//	}
type Timestamp struct {
	Seconds uint64 `cbor:"1,keyasint"`
	Nanos   uint32 `cbor:"2,keyasint,omitempty"`
}

// NewTimestamp converts a time.Time to a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{
		Seconds: uint64(t.Unix()),
		Nanos:   uint32(t.Nanosecond()),
	}
}

// Time converts the timestamp back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Seconds), int64(t.Nanos))
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool {
	return t.Seconds == 0 && t.Nanos == 0
}

// Header is the fixed-shape part of every frame.
//
// CBOR encoding:
//
//	{
//	  1: timestamp,  // Timestamp
//	  2: source,     // uint16: producer id
//	  3: sequence    // uint16: correlates a write with its echo
//	}
type Header struct {
	Timestamp Timestamp `cbor:"1,keyasint"`
	Source    uint16    `cbor:"2,keyasint,omitempty"`
	Sequence  uint16    `cbor:"3,keyasint,omitempty"`
}

// NewHeader creates a header stamped with the current time.
func NewHeader(source, sequence uint16) Header {
	return Header{
		Timestamp: NewTimestamp(time.Now()),
		Source:    source,
		Sequence:  sequence,
	}
}

// Message is a decoded frame.
type Message struct {
	Header  Header
	Payload Payload
}

// NewMessage creates a message with a fresh header.
func NewMessage(source, sequence uint16, payload Payload) *Message {
	return &Message{
		Header:  NewHeader(source, sequence),
		Payload: payload,
	}
}

// Kind returns the payload kind of the message.
func (m *Message) Kind() PayloadKind {
	if m == nil || m.Payload == nil {
		return KindUnknown
	}
	return m.Payload.Kind()
}

// PayloadKind discriminates the payload variants.
type PayloadKind uint8

const (
	KindUnknown      PayloadKind = 0
	KindBoolean      PayloadKind = 1
	KindNumber       PayloadKind = 2
	KindString       PayloadKind = 3
	KindBytes        PayloadKind = 4
	KindStatus       PayloadKind = 5
	KindNotification PayloadKind = 6
	KindStructure    PayloadKind = 7
)

// String returns the payload kind name as used in the structure tree.
func (k PayloadKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindStatus:
		return "status"
	case KindNotification:
		return "notification"
	case KindStructure:
		return "structure"
	default:
		return "unknown"
	}
}

// IsValid returns true if the kind is a known payload variant.
func (k PayloadKind) IsValid() bool {
	return k >= KindBoolean && k <= KindStructure
}

// ParsePayloadKind parses the attribute type name advertised in the
// structure tree.
func ParsePayloadKind(s string) PayloadKind {
	switch s {
	case "boolean", "bool":
		return KindBoolean
	case "number", "float", "integer":
		return KindNumber
	case "string":
		return KindString
	case "bytes":
		return KindBytes
	case "status":
		return KindStatus
	case "notification":
		return KindNotification
	case "structure":
		return KindStructure
	default:
		return KindUnknown
	}
}

// Payload is implemented by every payload variant.
type Payload interface {
	// Kind returns the payload discriminant.
	Kind() PayloadKind

	// Validate checks the payload for values the wire format forbids.
	Validate() error
}

// Compile-time interface satisfaction checks.
var (
	_ Payload = (*BooleanPayload)(nil)
	_ Payload = (*NumberPayload)(nil)
	_ Payload = (*StringPayload)(nil)
	_ Payload = (*BytesPayload)(nil)
	_ Payload = (*StatusPayload)(nil)
	_ Payload = (*NotificationPayload)(nil)
	_ Payload = (*StructurePayload)(nil)
)
