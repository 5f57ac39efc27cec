package wire

import (
	"bytes"
	"fmt"
	"math"
	"slices"
)

// BooleanPayload carries a single boolean value.
//
// CBOR encoding:
//
//	{1: value}
type BooleanPayload struct {
	Value bool `cbor:"1,keyasint"`
}

// Kind implements Payload.
func (*BooleanPayload) Kind() PayloadKind { return KindBoolean }

// Validate implements Payload.
func (*BooleanPayload) Validate() error { return nil }

// NumberPayload carries a numeric value and its advisory metadata.
// Unit, Decimals, Range and Whitelist are never enforced by the codec.
//
// CBOR encoding:
//
//	{
//	  1: value,      // float64
//	  2: unit,       // {1: prefix, 2: unit} (optional)
//	  3: decimals,   // uint8: display precision
//	  4: range,      // {1: min, 2: max} (optional)
//	  5: whitelist   // array of float64 (optional)
//	}
type NumberPayload struct {
	Value     float64   `cbor:"1,keyasint"`
	Unit      *Unit     `cbor:"2,keyasint,omitempty"`
	Decimals  uint8     `cbor:"3,keyasint,omitempty"`
	Range     *Range    `cbor:"4,keyasint,omitempty"`
	Whitelist []float64 `cbor:"5,keyasint,omitempty"`
}

// Kind implements Payload.
func (*NumberPayload) Kind() PayloadKind { return KindNumber }

// Validate implements Payload.
func (p *NumberPayload) Validate() error {
	if math.IsNaN(p.Value) {
		return fmt.Errorf("number value is NaN")
	}
	if p.Range != nil && p.Range.Min > p.Range.Max {
		return fmt.Errorf("range min %v is greater than max %v", p.Range.Min, p.Range.Max)
	}
	return nil
}

// Epsilon returns the smallest difference representable at the declared
// number of decimals.
func (p *NumberPayload) Epsilon() float64 {
	return math.Pow10(-int(p.Decimals))
}

// Matches reports whether v equals the payload value within Epsilon.
func (p *NumberPayload) Matches(v float64) bool {
	return math.Abs(p.Value-v) < p.Epsilon()
}

// InRange reports whether v lies within the advisory range.
// A payload without a range accepts every value.
func (p *NumberPayload) InRange(v float64) bool {
	if p.Range == nil {
		return true
	}
	return v >= p.Range.Min && v <= p.Range.Max
}

// Allows reports whether v is accepted by the advisory whitelist.
// An empty whitelist accepts every value.
func (p *NumberPayload) Allows(v float64) bool {
	if len(p.Whitelist) == 0 {
		return true
	}
	for _, w := range p.Whitelist {
		if p.withDecimals(w).Matches(v) {
			return true
		}
	}
	return false
}

func (p *NumberPayload) withDecimals(v float64) *NumberPayload {
	return &NumberPayload{Value: v, Decimals: p.Decimals}
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `cbor:"1,keyasint"`
	Max float64 `cbor:"2,keyasint"`
}

// StringPayload carries a string value.
//
// CBOR encoding:
//
//	{
//	  1: value,      // text string
//	  2: whitelist   // array of text strings (optional)
//	}
type StringPayload struct {
	Value     string   `cbor:"1,keyasint"`
	Whitelist []string `cbor:"2,keyasint,omitempty"`
}

// Kind implements Payload.
func (*StringPayload) Kind() PayloadKind { return KindString }

// Validate implements Payload.
func (*StringPayload) Validate() error { return nil }

// Allows reports whether v is accepted by the advisory whitelist.
func (p *StringPayload) Allows(v string) bool {
	return len(p.Whitelist) == 0 || slices.Contains(p.Whitelist, v)
}

// BytesPayload carries opaque data.
//
// CBOR encoding:
//
//	{1: data}
type BytesPayload struct {
	Data []byte `cbor:"1,keyasint"`
}

// Kind implements Payload.
func (*BytesPayload) Kind() PayloadKind { return KindBytes }

// Validate implements Payload.
func (*BytesPayload) Validate() error { return nil }

// Equal reports whether both payloads carry the same bytes.
func (p *BytesPayload) Equal(other *BytesPayload) bool {
	return bytes.Equal(p.Data, other.Data)
}
