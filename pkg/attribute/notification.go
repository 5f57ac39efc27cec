package attribute

import (
	"context"
	"time"

	"github.com/panduza/panduza-go/pkg/wire"
)

// Notification is the read-only platform notification stream.
type Notification struct {
	*Handle[wire.NotificationPayload]
}

// NewNotification wraps a handle.
func NewNotification(h *Handle[wire.NotificationPayload]) *Notification {
	return &Notification{Handle: h}
}

// Sequence returns the header sequence of the last notification.
func (n *Notification) Sequence() (uint16, bool) {
	h, ok := n.Core().LastHeader()
	return h.Sequence, ok
}

// WaitForError waits for the next Error notification, optionally limited
// to one source (empty matches all).
func (n *Notification) WaitForError(ctx context.Context, source string, timeout time.Duration) (wire.NotificationPayload, error) {
	return n.WaitFor(ctx, func(p wire.NotificationPayload) bool {
		return p.Type == wire.NotificationError && (source == "" || p.Source == source)
	}, timeout)
}
