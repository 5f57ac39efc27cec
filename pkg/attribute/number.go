package attribute

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Number is a numeric attribute. Values are float64. The unit, range and
// whitelist stay as last announced by the device until a frame replaces
// them; decimals follow the last frame.
type Number struct {
	*Handle[wire.NumberPayload]
	enforce atomic.Bool
}

// NewNumber wraps a handle.
func NewNumber(h *Handle[wire.NumberPayload]) *Number {
	return &Number{Handle: h}
}

// EnforceWhitelist turns on rejection of writes outside the announced
// whitelist or range. Off by default: the metadata is advisory.
func (n *Number) EnforceWhitelist(on bool) { n.enforce.Store(on) }

// Get returns the last received value.
func (n *Number) Get() (float64, bool) {
	p, ok := n.Handle.Get()
	return p.Value, ok
}

// Metadata returns the last received value with the unit, range and
// whitelist last announced.
func (n *Number) Metadata() (wire.NumberPayload, bool) {
	return n.Handle.Get()
}

// Decimals returns the precision announced by the last frame.
func (n *Number) Decimals() uint8 {
	p, _ := n.Handle.Get()
	return p.Decimals
}

// Unit returns the announced unit, or nil.
func (n *Number) Unit() *wire.Unit {
	p, _ := n.Handle.Get()
	return p.Unit
}

// payload builds the outbound payload for v, carrying the last announced
// decimals so the confirmation tolerance matches the device precision.
func (n *Number) payload(op string, v float64) (wire.NumberPayload, error) {
	last, ok := n.Handle.Get()
	if ok && n.enforce.Load() {
		if !last.Allows(v) {
			return wire.NumberPayload{}, pzaerrors.New(pzaerrors.ErrRejected, op, n.Topic(), fmt.Errorf("%v is not whitelisted", v))
		}
		if !last.InRange(v) {
			return wire.NumberPayload{}, pzaerrors.New(pzaerrors.ErrRejected, op, n.Topic(), fmt.Errorf("%v is out of range", v))
		}
	}
	return wire.NumberPayload{Value: v, Decimals: last.Decimals}, nil
}

// Set writes v and waits for an echo within the announced precision.
func (n *Number) Set(ctx context.Context, v float64) error {
	p, err := n.payload("set", v)
	if err != nil {
		return err
	}
	return n.Handle.Set(ctx, p)
}

// Shoot writes v without confirmation.
func (n *Number) Shoot(ctx context.Context, v float64) error {
	p, err := n.payload("shoot", v)
	if err != nil {
		return err
	}
	return n.Handle.Shoot(ctx, p)
}

// WaitFor waits for a value accepted by match.
func (n *Number) WaitFor(ctx context.Context, match func(float64) bool, timeout time.Duration) (float64, error) {
	p, err := n.Handle.WaitFor(ctx, func(p wire.NumberPayload) bool { return match(p.Value) }, timeout)
	return p.Value, err
}

// WaitForValue waits for want within the announced precision.
func (n *Number) WaitForValue(ctx context.Context, want float64, timeout time.Duration) error {
	_, err := n.Handle.WaitFor(ctx, func(p wire.NumberPayload) bool { return p.Matches(want) }, timeout)
	return err
}

// AddCallback registers fn for inbound values accepted by cond.
func (n *Number) AddCallback(fn Callback[float64], cond Condition[float64]) CallbackID {
	var c Condition[wire.NumberPayload]
	if cond != nil {
		c = func(p wire.NumberPayload) bool { return cond(p.Value) }
	}
	return n.Handle.AddCallback(func(ctx context.Context, p wire.NumberPayload) error {
		return fn(ctx, p.Value)
	}, c)
}

// Pop removes and returns the oldest queued value.
func (n *Number) Pop() (float64, bool) {
	p, ok := n.Handle.Pop()
	return p.Value, ok
}
