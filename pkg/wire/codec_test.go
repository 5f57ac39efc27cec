package wire

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	header := Header{
		Timestamp: NewTimestamp(time.Unix(1700000000, 123456789)),
		Source:    42,
		Sequence:  65000,
	}

	tests := []struct {
		name    string
		payload Payload
	}{
		{name: "boolean true", payload: &BooleanPayload{Value: true}},
		{name: "boolean false", payload: &BooleanPayload{Value: false}},
		{
			name: "number with metadata",
			payload: &NumberPayload{
				Value:     1.23,
				Unit:      &Unit{Prefix: PrefixMilli, Unit: UnitVolt},
				Decimals:  2,
				Range:     &Range{Min: -5, Max: 5},
				Whitelist: []float64{0, 1.23, 3.3},
			},
		},
		{name: "bare number", payload: &NumberPayload{Value: -17}},
		{name: "string", payload: &StringPayload{Value: "hello", Whitelist: []string{"hello", "world"}}},
		{name: "bytes", payload: &BytesPayload{Data: []byte{0x00, 0xff, 0x10}}},
		{
			name: "status",
			payload: &StatusPayload{Instances: []InstanceStatus{
				{Instance: "tester", State: StateRunning},
				{Instance: "psu", State: StateError, ErrorString: "overcurrent"},
			}},
		},
		{
			name:    "notification",
			payload: &NotificationPayload{Type: NotificationError, Source: "psu", Message: "link lost"},
		},
		{
			name: "structure",
			payload: &StructurePayload{Root: Node{
				Kind: NodeUndefined,
				Children: []Node{{
					Name: "tester",
					Kind: NodeInstance,
					Tags: []string{"virtual"},
					Children: []Node{{
						Name: "boolean",
						Kind: NodeClass,
						Children: []Node{{
							Name: "rw",
							Kind: NodeAttribute,
							Type: "boolean",
							Mode: ModeReadWrite,
							Info: "loopback",
						}},
					}},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(&Message{Header: header, Payload: tt.payload})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if decoded.Header != header {
				t.Errorf("Header mismatch: got %+v, want %+v", decoded.Header, header)
			}
			if !reflect.DeepEqual(decoded.Payload, tt.payload) {
				t.Errorf("Payload mismatch: got %+v, want %+v", decoded.Payload, tt.payload)
			}

			kind, err := PeekKind(data)
			if err != nil {
				t.Fatalf("PeekKind failed: %v", err)
			}
			if kind != tt.payload.Kind() {
				t.Errorf("PeekKind = %v, want %v", kind, tt.payload.Kind())
			}
		})
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	_, err := Decode(nil)
	if !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("Decode(nil) error = %v, want ErrEmptyFrame", err)
	}
	_, err = Decode([]byte{})
	if !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("Decode([]) error = %v, want ErrEmptyFrame", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Fatal("expected error decoding garbage")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	body, _ := Marshal(map[int]any{1: true})
	data, err := Marshal(envelope{Header: NewHeader(1, 1), Kind: PayloadKind(99), Body: body})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Decode error = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeMissingBody(t *testing.T) {
	data, err := Marshal(struct {
		Header Header      `cbor:"1,keyasint"`
		Kind   PayloadKind `cbor:"2,keyasint"`
	}{Header: NewHeader(1, 1), Kind: KindBoolean})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrMissingPayload) {
		t.Fatalf("Decode error = %v, want ErrMissingPayload", err)
	}
}

func TestNotificationTypeRejected(t *testing.T) {
	// Bypass Encode validation to put an unknown type on the wire.
	body, _ := Marshal(map[int]any{1: 7, 2: "psu", 3: "boom"})
	data, _ := Marshal(envelope{Header: NewHeader(1, 1), Kind: KindNotification, Body: body})

	if _, err := Decode(data); err == nil {
		t.Fatal("expected unknown notification type to be rejected")
	}

	_, err := Encode(NewMessage(1, 1, &NotificationPayload{Type: 0}))
	if err == nil {
		t.Fatal("expected Encode to reject notification type 0")
	}
}

func TestEncodeRequiresPayload(t *testing.T) {
	if _, err := Encode(&Message{}); !errors.Is(err, ErrMissingPayload) {
		t.Fatalf("Encode error = %v, want ErrMissingPayload", err)
	}
}

func TestStructureRejectsSlashInName(t *testing.T) {
	p := &StructurePayload{Root: Node{Children: []Node{{Name: "a/b", Kind: NodeInstance}}}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNumberEpsilon(t *testing.T) {
	p := &NumberPayload{Value: 1.230001, Decimals: 2}
	if !p.Matches(1.23) {
		t.Error("1.230001 should match 1.23 at 2 decimals")
	}
	if p.Matches(1.25) {
		t.Error("1.230001 should not match 1.25 at 2 decimals")
	}

	p = &NumberPayload{Value: 3, Whitelist: []float64{1, 2, 3}}
	if !p.Allows(3) || p.Allows(4) {
		t.Error("whitelist check failed")
	}
	p.Range = &Range{Min: 0, Max: 10}
	if !p.InRange(10) || p.InRange(10.5) {
		t.Error("range check failed")
	}
}

func TestTimestampConversion(t *testing.T) {
	now := time.Unix(1712345678, 987654321)
	ts := NewTimestamp(now)
	if !ts.Time().Equal(now) {
		t.Errorf("Time() = %v, want %v", ts.Time(), now)
	}
	if ts.IsZero() {
		t.Error("IsZero() = true for non-zero timestamp")
	}
}
