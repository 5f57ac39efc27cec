package attribute

import (
	"testing"

	"github.com/panduza/panduza-go/pkg/wire"
)

func TestNumberCodecEqual(t *testing.T) {
	tests := []struct {
		name      string
		got, want wire.NumberPayload
		equal     bool
	}{
		{"within two decimals", wire.NumberPayload{Value: 1.230001, Decimals: 2}, wire.NumberPayload{Value: 1.23}, true},
		{"outside two decimals", wire.NumberPayload{Value: 1.24, Decimals: 2}, wire.NumberPayload{Value: 1.23}, false},
		{"written decimals used when echo has none", wire.NumberPayload{Value: 1.2301}, wire.NumberPayload{Value: 1.23, Decimals: 3}, true},
		{"integer precision", wire.NumberPayload{Value: 4.5}, wire.NumberPayload{Value: 4}, true},
		{"integer precision mismatch", wire.NumberPayload{Value: 5}, wire.NumberPayload{Value: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (NumberCodec{}).Equal(tt.got, tt.want); got != tt.equal {
				t.Errorf("Equal() = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestNumberCodecMerge(t *testing.T) {
	prev := wire.NumberPayload{
		Value:     5,
		Decimals:  1,
		Unit:      &wire.Unit{Unit: wire.UnitVolt},
		Range:     &wire.Range{Min: 0, Max: 30},
		Whitelist: []float64{3.3, 5, 12},
	}
	got := (NumberCodec{}).Merge(prev, wire.NumberPayload{Value: 12, Decimals: 1})
	if got.Value != 12 || got.Unit != prev.Unit || got.Range != prev.Range || len(got.Whitelist) != 3 {
		t.Errorf("Merge() = %+v", got)
	}

	next := wire.NumberPayload{Value: 1, Range: &wire.Range{Min: 0, Max: 2}}
	got = (NumberCodec{}).Merge(prev, next)
	if got.Range != next.Range {
		t.Errorf("announced range replaced by previous one: %+v", got.Range)
	}
}

func TestCodecKindMismatch(t *testing.T) {
	if _, err := (BooleanCodec{}).Decode(&wire.StringPayload{Value: "x"}); err == nil {
		t.Error("expected error decoding a string payload as boolean")
	}
	if _, err := (StatusCodec{}).Decode(&wire.BytesPayload{}); err == nil {
		t.Error("expected error decoding a bytes payload as status")
	}
}

func TestReadOnlyCodecsDoNotEncode(t *testing.T) {
	if (StatusCodec{}).Encode(nil) != nil {
		t.Error("status must not encode")
	}
	if (NotificationCodec{}).Encode(wire.NotificationPayload{}) != nil {
		t.Error("notification must not encode")
	}
	if (StructureCodec{}).Encode(wire.Node{}) != nil {
		t.Error("structure must not encode")
	}
}

func TestBytesCodecEqual(t *testing.T) {
	c := BytesCodec{}
	if !c.Equal([]byte{1, 2}, []byte{1, 2}) {
		t.Error("equal bytes reported different")
	}
	if c.Equal([]byte{1}, []byte{1, 2}) {
		t.Error("different bytes reported equal")
	}
}

func TestSequenceWraps(t *testing.T) {
	s := &Sequence{}
	s.next.Store(1<<16 - 1)
	if got := s.Next(); got != 0 {
		t.Errorf("Next() = %d, want 0", got)
	}
	if got := s.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
	if RandomSource() == 0 {
		t.Error("source must be non-zero")
	}
}
