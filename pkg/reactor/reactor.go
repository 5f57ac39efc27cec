package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panduza/panduza-go/pkg/attribute"
	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/log"
	"github.com/panduza/panduza-go/pkg/metrics"
	"github.com/panduza/panduza-go/pkg/router"
	"github.com/panduza/panduza-go/pkg/structure"
	"github.com/panduza/panduza-go/pkg/transport"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Reactor is the client session root. It owns the transport session, the
// router and the structure index, and builds attribute handles.
type Reactor struct {
	cfg      Config
	prefix   string
	session  transport.Session
	router   *router.Router
	index    *structure.Index
	follower *structure.Follower
	logger   *slog.Logger
	tracer   *log.Tracer
	metrics  *metrics.Metrics
	source   uint16
	seq      *attribute.Sequence

	mu     sync.Mutex
	cores  map[string]any
	closed bool
}

// Connect opens the session and blocks until the first structure frame
// has been received, or StructureTimeout expires.
func Connect(ctx context.Context, cfg Config) (*Reactor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := metrics.New(cfg.Registerer)
	if err != nil {
		return nil, pzaerrors.New(pzaerrors.ErrConfig, "connect", "", err)
	}
	tracer := log.NewTracer(cfg.Trace)

	sc := cfg.SessionConfig()
	session, err := transport.Open(ctx, sc)
	if err != nil {
		tracer.Error(log.LayerTransport, log.DirectionOut, "", "connect", err)
		return nil, pzaerrors.New(pzaerrors.ErrSession, "connect", "", err)
	}
	tracer.State(log.StateEntitySession, "", "", "open", sc.ResolvedBackend())

	source := cfg.SourceID
	if source == 0 {
		source = attribute.RandomSource()
	}
	r := &Reactor{
		cfg:     cfg,
		prefix:  wire.Prefix(cfg.Namespace),
		session: session,
		router:  router.New(session, router.Config{Logger: logger, Tracer: tracer, Metrics: m}),
		logger:  logger,
		tracer:  tracer,
		metrics: m,
		source:  source,
		seq:     attribute.NewSequence(),
		cores:   make(map[string]any),
	}
	r.index = structure.NewIndex(r.prefix, logger)

	r.follower, err = structure.Follow(ctx, r.index, r.router, structure.FollowConfig{
		Capacity: cfg.ChannelCapacity,
		Frames:   cfg.Frames,
		Logger:   logger,
		Tracer:   tracer,
		Metrics:  m,
	})
	if err != nil {
		r.Close()
		return nil, pzaerrors.New(pzaerrors.ErrSubscribe, "connect", structure.StructureTopic(r.prefix), err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.StructureTimeout)
	defer cancel()
	if err := r.index.WaitReady(waitCtx); err != nil {
		r.Close()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, pzaerrors.New(pzaerrors.ErrTimeout, "connect", r.follower.Topic(),
				fmt.Errorf("no structure within %s", cfg.StructureTimeout))
		}
		return nil, err
	}

	logger.Info("reactor connected",
		"backend", sc.ResolvedBackend(),
		"endpoints", sc.Connect.Endpoints,
		"prefix", r.prefix,
		"attributes", r.index.Len())
	return r, nil
}

// Prefix returns the topic prefix, "pza" or "<namespace>/pza".
func (r *Reactor) Prefix() string { return r.prefix }

// Source returns the producer id stamped on published headers.
func (r *Reactor) Source() uint16 { return r.source }

// Session returns the transport session.
func (r *Reactor) Session() transport.Session { return r.session }

// Tracer returns the protocol tracer, nil when tracing is off.
func (r *Reactor) Tracer() *log.Tracer { return r.tracer }

// Structure returns a read-only view of the attribute directory.
func (r *Reactor) Structure() *Structure { return &Structure{index: r.index} }

// FindAttribute looks pattern up in the structure index. The builder is
// returned even when nothing matched; its TryInto methods then fail with
// ErrNotFound.
func (r *Reactor) FindAttribute(pattern string) AttributeBuilder {
	b := AttributeBuilder{reactor: r, pattern: pattern}
	if meta, ok := r.index.Find(pattern); ok {
		b.meta = &meta
	}
	return b
}

// NewStatusAttribute binds the platform status attribute.
func (r *Reactor) NewStatusAttribute(ctx context.Context) (*attribute.Status, error) {
	h, err := openShared(ctx, r, attribute.Codec[[]wire.InstanceStatus](attribute.StatusCodec{}), wire.Join(r.prefix, wire.StatusBase), wire.ModeReadOnly)
	if err != nil {
		return nil, err
	}
	return attribute.NewStatus(h), nil
}

// NewNotificationAttribute binds the platform notifications attribute.
func (r *Reactor) NewNotificationAttribute(ctx context.Context) (*attribute.Notification, error) {
	h, err := openShared(ctx, r, attribute.Codec[wire.NotificationPayload](attribute.NotificationCodec{}), wire.Join(r.prefix, wire.NotificationsBase), wire.ModeReadOnly)
	if err != nil {
		return nil, err
	}
	return attribute.NewNotification(h), nil
}

// NewStructureAttribute binds the raw structure tree as an attribute.
func (r *Reactor) NewStructureAttribute(ctx context.Context) (*attribute.Structure, error) {
	h, err := openShared(ctx, r, attribute.Codec[wire.Node](attribute.StructureCodec{}), wire.Join(r.prefix, wire.StructureBase), wire.ModeReadOnly)
	if err != nil {
		return nil, err
	}
	return attribute.NewStructure(h, r.prefix), nil
}

// openShared returns a handle on the core of topic, opening the core when
// none is live. At most one core per topic holds the inbound subscription.
func openShared[T any](ctx context.Context, r *Reactor, codec attribute.Codec[T], topic string, mode wire.Mode) (*attribute.Handle[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, pzaerrors.New(pzaerrors.ErrSession, "open", topic, transport.ErrSessionClosed)
	}

	if existing, ok := r.cores[topic]; ok {
		core, ok := existing.(*attribute.Core[T])
		if !ok {
			return nil, pzaerrors.InvalidType(topic, codec.Kind().String(), fmt.Sprintf("%T", existing))
		}
		if h, ok := core.Acquire(); ok {
			return h, nil
		}
		delete(r.cores, topic)
	}

	var core *attribute.Core[T]
	core, err := attribute.Open(ctx, codec, attribute.Options{
		Topic:          topic,
		Mode:           mode,
		Router:         r.router,
		Capacity:       r.cfg.ChannelCapacity,
		PrimeTimeout:   r.cfg.PrimeTimeout,
		ConfirmTimeout: r.cfg.ConfirmTimeout,
		Source:         r.source,
		Sequence:       r.seq,
		Frames:         r.cfg.Frames,
		Logger:         r.logger,
		Tracer:         r.tracer,
		Metrics:        r.metrics,
		OnRelease:      func() { r.forget(topic, core) },
	})
	if err != nil {
		return nil, err
	}
	h, _ := core.Acquire()
	r.cores[topic] = core
	return h, nil
}

func (r *Reactor) forget(topic string, core any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cores[topic] == core {
		delete(r.cores, topic)
	}
}

// OpenAttributes returns the number of live attribute cores.
func (r *Reactor) OpenAttributes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cores)
}

// Close stops the structure follower, releases every route and closes the
// session. Pending waiters fail with ErrChannelClosed.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.follower != nil {
		_ = r.follower.Close()
	}
	_ = r.router.Close()
	err := r.session.Close()
	r.tracer.State(log.StateEntitySession, "", "open", "closed", "")
	r.logger.Info("reactor closed")
	return err
}
