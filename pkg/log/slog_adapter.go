package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// slogFrameBytes caps the hex dump attached to frame events.
const slogFrameBytes = 32

// SlogAdapter renders trace events as slog records. Bus traffic is logged
// at Debug; decode errors and session errors at Warn so they surface at
// the default CLI level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger, or slog.Default()
// when logger is nil.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger.With("component", "trace")}
}

func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	if event.Category == CategoryDecodeError || event.Category == CategoryError {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 10)
	attrs = append(attrs,
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	if event.Topic != "" {
		attrs = append(attrs, slog.String("topic", event.Topic))
	}
	a.logger.LogAttrs(ctx, level, "trace", append(attrs, detailAttrs(event)...)...)
}

func detailAttrs(event Event) []slog.Attr {
	switch {
	case event.Frame != nil:
		data := event.Frame.Data
		if len(data) > slogFrameBytes {
			data = data[:slogFrameBytes]
		}
		return []slog.Attr{
			slog.Int("size", event.Frame.Size),
			slog.String("data", hex.EncodeToString(data)),
		}
	case event.Message != nil:
		return []slog.Attr{
			slog.String("kind", event.Message.Kind.String()),
			slog.Uint64("source", uint64(event.Message.Source)),
			slog.Uint64("sequence", uint64(event.Message.Sequence)),
			slog.Any("value", event.Message.Value),
		}
	case event.StateChange != nil:
		attrs := []slog.Attr{
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		return attrs
	case event.Error != nil:
		return []slog.Attr{
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error", event.Error.Message),
			slog.String("context", event.Error.Context),
		}
	}
	return nil
}

var _ Logger = (*SlogAdapter)(nil)
