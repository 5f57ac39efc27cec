package attribute

import (
	"context"
	"sync/atomic"
	"time"

	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Handle is one reference on a shared core. Callbacks added through a
// handle are removed when it is closed. The core is released with its last
// handle.
type Handle[T any] struct {
	core   *Core[T]
	id     uint64
	closed atomic.Bool
}

// Core returns the shared core.
func (h *Handle[T]) Core() *Core[T] { return h.core }

// Topic returns the attribute base topic.
func (h *Handle[T]) Topic() string { return h.core.topic }

// Mode returns the access mode.
func (h *Handle[T]) Mode() wire.Mode { return h.core.mode }

// Get returns the latest received value.
func (h *Handle[T]) Get() (T, bool) { return h.core.Get() }

// Changed returns a channel closed by the next inbound frame.
func (h *Handle[T]) Changed() <-chan struct{} { return h.core.Changed() }

func (h *Handle[T]) check(op string) error {
	if h.closed.Load() {
		return pzaerrors.New(pzaerrors.ErrChannelClosed, op, h.core.topic, nil)
	}
	return nil
}

// Set writes v and waits for its confirmation (read-write) or publication
// (write-only).
func (h *Handle[T]) Set(ctx context.Context, v T) error {
	if err := h.check("set"); err != nil {
		return err
	}
	return h.core.Set(ctx, v)
}

// Shoot writes v without waiting for confirmation.
func (h *Handle[T]) Shoot(ctx context.Context, v T) error {
	if err := h.check("shoot"); err != nil {
		return err
	}
	return h.core.Shoot(ctx, v)
}

// WaitFor returns the first value, cached or inbound, accepted by match.
func (h *Handle[T]) WaitFor(ctx context.Context, match func(T) bool, timeout time.Duration) (T, error) {
	if err := h.check("wait"); err != nil {
		var zero T
		return zero, err
	}
	return h.core.WaitFor(ctx, match, timeout)
}

// AddCallback registers fn; see Core.AddCallback.
func (h *Handle[T]) AddCallback(fn Callback[T], cond Condition[T]) CallbackID {
	return h.core.addCallback(h.id, fn, cond)
}

// RemoveCallback unregisters a callback.
func (h *Handle[T]) RemoveCallback(id CallbackID) bool { return h.core.RemoveCallback(id) }

// ClearCallbacks unregisters every callback of the core.
func (h *Handle[T]) ClearCallbacks() { h.core.ClearCallbacks() }

// EnableInputQueue switches the FIFO of received values on or off.
func (h *Handle[T]) EnableInputQueue(on bool) { h.core.EnableInputQueue(on) }

// Pop removes and returns the oldest queued value.
func (h *Handle[T]) Pop() (T, bool) { return h.core.Pop() }

// QueueLen returns the number of queued values.
func (h *Handle[T]) QueueLen() int { return h.core.QueueLen() }

// Clone returns a new handle on the same core.
func (h *Handle[T]) Clone() (*Handle[T], bool) {
	if h.closed.Load() {
		return nil, false
	}
	return h.core.Acquire()
}

// Close drops the handle. It never blocks on the inbound task and is safe
// to call more than once.
func (h *Handle[T]) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.core.release(h.id)
	return nil
}
