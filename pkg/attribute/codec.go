package attribute

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/panduza/panduza-go/pkg/wire"
)

// Codec adapts one payload kind to the generic core.
type Codec[T any] interface {
	// Kind returns the payload kind carried on the wire.
	Kind() wire.PayloadKind

	// Decode extracts the value from a decoded payload of Kind.
	Decode(p wire.Payload) (T, error)

	// Encode wraps v into a payload. Read-only kinds return nil.
	Encode(v T) wire.Payload

	// Equal reports whether got, received on /att, confirms a write of want.
	Equal(got, want T) bool
}

// merger is implemented by codecs whose frames may leave out metadata that
// an earlier frame announced. Merge returns next completed from prev.
type merger[T any] interface {
	Merge(prev, next T) T
}

func payloadAs[P wire.Payload](p wire.Payload) (P, error) {
	v, ok := p.(P)
	if !ok {
		var zero P
		return zero, fmt.Errorf("unexpected %s payload", p.Kind())
	}
	return v, nil
}

// BooleanCodec handles boolean payloads.
type BooleanCodec struct{}

func (BooleanCodec) Kind() wire.PayloadKind { return wire.KindBoolean }

func (BooleanCodec) Decode(p wire.Payload) (bool, error) {
	b, err := payloadAs[*wire.BooleanPayload](p)
	if err != nil {
		return false, err
	}
	return b.Value, nil
}

func (BooleanCodec) Encode(v bool) wire.Payload { return &wire.BooleanPayload{Value: v} }

func (BooleanCodec) Equal(got, want bool) bool { return got == want }

// NumberCodec handles number payloads. Values carry their metadata so the
// confirmation tolerance follows the decimals declared by the device.
type NumberCodec struct{}

func (NumberCodec) Kind() wire.PayloadKind { return wire.KindNumber }

func (NumberCodec) Decode(p wire.Payload) (wire.NumberPayload, error) {
	n, err := payloadAs[*wire.NumberPayload](p)
	if err != nil {
		return wire.NumberPayload{}, err
	}
	return *n, nil
}

func (NumberCodec) Encode(v wire.NumberPayload) wire.Payload { return &v }

// Equal compares within the epsilon of the received decimals, falling back
// to those of the written value when the echo declares none.
func (NumberCodec) Equal(got, want wire.NumberPayload) bool {
	if got.Decimals == 0 && want.Decimals != 0 {
		got.Decimals = want.Decimals
	}
	return got.Matches(want.Value)
}

// Merge keeps the unit, range and whitelist of prev when next omits them.
// Command echoes carry only the value and decimals.
func (NumberCodec) Merge(prev, next wire.NumberPayload) wire.NumberPayload {
	if next.Unit == nil {
		next.Unit = prev.Unit
	}
	if next.Range == nil {
		next.Range = prev.Range
	}
	if next.Whitelist == nil {
		next.Whitelist = prev.Whitelist
	}
	return next
}

// StringCodec handles string payloads.
type StringCodec struct{}

func (StringCodec) Kind() wire.PayloadKind { return wire.KindString }

func (StringCodec) Decode(p wire.Payload) (string, error) {
	s, err := payloadAs[*wire.StringPayload](p)
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

func (StringCodec) Encode(v string) wire.Payload { return &wire.StringPayload{Value: v} }

func (StringCodec) Equal(got, want string) bool { return got == want }

// BytesCodec handles raw byte payloads.
type BytesCodec struct{}

func (BytesCodec) Kind() wire.PayloadKind { return wire.KindBytes }

func (BytesCodec) Decode(p wire.Payload) ([]byte, error) {
	b, err := payloadAs[*wire.BytesPayload](p)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

func (BytesCodec) Encode(v []byte) wire.Payload { return &wire.BytesPayload{Data: v} }

func (BytesCodec) Equal(got, want []byte) bool { return bytes.Equal(got, want) }

// StatusCodec handles the platform status list. It is read-only.
type StatusCodec struct{}

func (StatusCodec) Kind() wire.PayloadKind { return wire.KindStatus }

func (StatusCodec) Decode(p wire.Payload) ([]wire.InstanceStatus, error) {
	s, err := payloadAs[*wire.StatusPayload](p)
	if err != nil {
		return nil, err
	}
	return s.Instances, nil
}

func (StatusCodec) Encode([]wire.InstanceStatus) wire.Payload { return nil }

func (StatusCodec) Equal(got, want []wire.InstanceStatus) bool { return slices.Equal(got, want) }

// NotificationCodec handles platform notifications. It is read-only.
type NotificationCodec struct{}

func (NotificationCodec) Kind() wire.PayloadKind { return wire.KindNotification }

func (NotificationCodec) Decode(p wire.Payload) (wire.NotificationPayload, error) {
	n, err := payloadAs[*wire.NotificationPayload](p)
	if err != nil {
		return wire.NotificationPayload{}, err
	}
	return *n, nil
}

func (NotificationCodec) Encode(wire.NotificationPayload) wire.Payload { return nil }

func (NotificationCodec) Equal(got, want wire.NotificationPayload) bool { return got == want }

// StructureCodec handles the structure tree. It is read-only.
type StructureCodec struct{}

func (StructureCodec) Kind() wire.PayloadKind { return wire.KindStructure }

func (StructureCodec) Decode(p wire.Payload) (wire.Node, error) {
	s, err := payloadAs[*wire.StructurePayload](p)
	if err != nil {
		return wire.Node{}, err
	}
	return s.Root, nil
}

func (StructureCodec) Encode(wire.Node) wire.Payload { return nil }

func (StructureCodec) Equal(wire.Node, wire.Node) bool { return false }
