package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for frames.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frames.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility: unknown keys are ignored.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Codec errors.
var (
	ErrEmptyFrame     = errors.New("empty frame")
	ErrMissingPayload = errors.New("frame has no payload")
	ErrUnknownKind    = errors.New("unknown payload kind")
)

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// FrameCodec converts messages to and from bus frames. Cores and the
// structure index take one so the envelope encoding can be replaced without
// touching the payload model.
type FrameCodec interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}

// CBORFrames is the default FrameCodec, backed by Encode and Decode.
var CBORFrames FrameCodec = cborFrames{}

type cborFrames struct{}

func (cborFrames) Encode(msg *Message) ([]byte, error) { return Encode(msg) }

func (cborFrames) Decode(data []byte) (*Message, error) { return Decode(data) }

// envelope is the on-the-wire shape of a Message.
type envelope struct {
	Header Header          `cbor:"1,keyasint"`
	Kind   PayloadKind     `cbor:"2,keyasint"`
	Body   cbor.RawMessage `cbor:"3,keyasint"`
}

// Encode encodes a message to CBOR bytes.
func Encode(msg *Message) ([]byte, error) {
	if msg == nil || msg.Payload == nil {
		return nil, ErrMissingPayload
	}
	if err := msg.Payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", msg.Payload.Kind(), err)
	}
	body, err := Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msg.Payload.Kind(), err)
	}
	return Marshal(envelope{
		Header: msg.Header,
		Kind:   msg.Payload.Kind(),
		Body:   body,
	})
}

// Decode decodes CBOR bytes into a message.
// The header, including the sequence number, is preserved as received.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	var env envelope
	if err := Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if len(env.Body) == 0 {
		return nil, ErrMissingPayload
	}

	payload, err := newPayload(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := Unmarshal(env.Body, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Kind, err)
	}

	return &Message{Header: env.Header, Payload: payload}, nil
}

// PeekKind returns the payload kind of an encoded frame without decoding
// the body.
func PeekKind(data []byte) (PayloadKind, error) {
	if len(data) == 0 {
		return KindUnknown, ErrEmptyFrame
	}
	var peek struct {
		Kind PayloadKind `cbor:"2,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return KindUnknown, fmt.Errorf("failed to peek frame: %w", err)
	}
	if !peek.Kind.IsValid() {
		return KindUnknown, fmt.Errorf("%w: %d", ErrUnknownKind, peek.Kind)
	}
	return peek.Kind, nil
}

// newPayload allocates an empty payload for the given kind.
func newPayload(kind PayloadKind) (Payload, error) {
	switch kind {
	case KindBoolean:
		return &BooleanPayload{}, nil
	case KindNumber:
		return &NumberPayload{}, nil
	case KindString:
		return &StringPayload{}, nil
	case KindBytes:
		return &BytesPayload{}, nil
	case KindStatus:
		return &StatusPayload{}, nil
	case KindNotification:
		return &NotificationPayload{}, nil
	case KindStructure:
		return &StructurePayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}
