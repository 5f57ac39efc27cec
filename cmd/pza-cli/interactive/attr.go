package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/panduza/panduza-go/pkg/reactor"
	"github.com/panduza/panduza-go/pkg/structure"
	"github.com/panduza/panduza-go/pkg/wire"
)

// attr adapts one typed attribute handle to the text commands of the shell.
type attr struct {
	meta  structure.Metadata
	get   func() (string, bool)
	set   func(ctx context.Context, raw string) error
	shoot func(ctx context.Context, raw string) error
	watch func(print func(string))
	close func() error
}

// openAttr resolves pattern and opens a handle of the advertised kind.
func openAttr(ctx context.Context, r *reactor.Reactor, pattern string) (*attr, error) {
	b := r.FindAttribute(pattern)
	meta, ok := b.Metadata()
	if !ok {
		return nil, fmt.Errorf("no attribute matches %q", pattern)
	}
	switch wire.ParsePayloadKind(meta.Type) {
	case wire.KindBoolean:
		h, err := b.TryIntoBoolean(ctx)
		if err != nil {
			return nil, err
		}
		return &attr{
			meta: meta,
			get: func() (string, bool) {
				v, ok := h.Get()
				return strconv.FormatBool(v), ok
			},
			set: func(ctx context.Context, raw string) error {
				v, err := parseBool(raw)
				if err != nil {
					return err
				}
				return h.Set(ctx, v)
			},
			shoot: func(ctx context.Context, raw string) error {
				v, err := parseBool(raw)
				if err != nil {
					return err
				}
				return h.Shoot(ctx, v)
			},
			watch: func(print func(string)) {
				h.AddCallback(func(_ context.Context, v bool) error {
					print(strconv.FormatBool(v))
					return nil
				}, nil)
			},
			close: h.Close,
		}, nil

	case wire.KindNumber:
		h, err := b.TryIntoNumber(ctx)
		if err != nil {
			return nil, err
		}
		format := func(v float64) string {
			s := strconv.FormatFloat(v, 'f', int(h.Decimals()), 64)
			if u := h.Unit(); u != nil {
				s += " " + u.String()
			}
			return s
		}
		return &attr{
			meta: meta,
			get: func() (string, bool) {
				v, ok := h.Get()
				return format(v), ok
			},
			set: func(ctx context.Context, raw string) error {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("invalid number %q", raw)
				}
				return h.Set(ctx, v)
			},
			shoot: func(ctx context.Context, raw string) error {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("invalid number %q", raw)
				}
				return h.Shoot(ctx, v)
			},
			watch: func(print func(string)) {
				h.AddCallback(func(_ context.Context, v float64) error {
					print(format(v))
					return nil
				}, nil)
			},
			close: h.Close,
		}, nil

	case wire.KindString:
		h, err := b.TryIntoString(ctx)
		if err != nil {
			return nil, err
		}
		return &attr{
			meta: meta,
			get: func() (string, bool) {
				v, ok := h.Get()
				return strconv.Quote(v), ok
			},
			set:   func(ctx context.Context, raw string) error { return h.Set(ctx, raw) },
			shoot: func(ctx context.Context, raw string) error { return h.Shoot(ctx, raw) },
			watch: func(print func(string)) {
				h.AddCallback(func(_ context.Context, v string) error {
					print(strconv.Quote(v))
					return nil
				}, nil)
			},
			close: h.Close,
		}, nil

	case wire.KindBytes:
		h, err := b.TryIntoBytes(ctx)
		if err != nil {
			return nil, err
		}
		return &attr{
			meta: meta,
			get: func() (string, bool) {
				v, ok := h.Get()
				return hex.EncodeToString(v), ok
			},
			set: func(ctx context.Context, raw string) error {
				v, err := hex.DecodeString(raw)
				if err != nil {
					return fmt.Errorf("invalid hex %q", raw)
				}
				return h.Set(ctx, v)
			},
			shoot: func(ctx context.Context, raw string) error {
				v, err := hex.DecodeString(raw)
				if err != nil {
					return fmt.Errorf("invalid hex %q", raw)
				}
				return h.Shoot(ctx, v)
			},
			watch: func(print func(string)) {
				h.AddCallback(func(_ context.Context, v []byte) error {
					print(hex.EncodeToString(v))
					return nil
				}, nil)
			},
			close: h.Close,
		}, nil
	}
	return nil, fmt.Errorf("attribute %s has unsupported type %q", meta.Topic, meta.Type)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q (use true/false or on/off)", raw)
}

func formatInstances(instances []wire.InstanceStatus) []string {
	out := make([]string, 0, len(instances))
	for _, in := range instances {
		line := fmt.Sprintf("%-24s %s", in.Instance, in.State)
		if in.ErrorString != "" {
			line += " (" + in.ErrorString + ")"
		}
		out = append(out, line)
	}
	return out
}

func formatNotification(n wire.NotificationPayload) string {
	return fmt.Sprintf("[%s] %s: %s", n.Type, n.Source, n.Message)
}
