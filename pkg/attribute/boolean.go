package attribute

import (
	"context"
	"time"
)

// Boolean is a boolean attribute.
type Boolean struct {
	*Handle[bool]
}

// NewBoolean wraps a handle.
func NewBoolean(h *Handle[bool]) *Boolean {
	return &Boolean{Handle: h}
}

// WaitForValue waits until the attribute reads want.
func (b *Boolean) WaitForValue(ctx context.Context, want bool, timeout time.Duration) error {
	_, err := b.WaitFor(ctx, func(v bool) bool { return v == want }, timeout)
	return err
}

// Toggle sets the opposite of the last received value. Without a received
// value it sets true.
func (b *Boolean) Toggle(ctx context.Context) error {
	v, _ := b.Get()
	return b.Set(ctx, !v)
}
