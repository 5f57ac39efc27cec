package attribute

import (
	"bytes"
	"context"
	"time"
)

// Bytes is an opaque binary attribute.
type Bytes struct {
	*Handle[[]byte]
}

// NewBytes wraps a handle.
func NewBytes(h *Handle[[]byte]) *Bytes {
	return &Bytes{Handle: h}
}

// WaitForValue waits until the attribute carries exactly want.
func (b *Bytes) WaitForValue(ctx context.Context, want []byte, timeout time.Duration) error {
	_, err := b.WaitFor(ctx, func(v []byte) bool { return bytes.Equal(v, want) }, timeout)
	return err
}
