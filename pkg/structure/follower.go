package structure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panduza/panduza-go/internal/backoff"
	"github.com/panduza/panduza-go/pkg/log"
	"github.com/panduza/panduza-go/pkg/metrics"
	"github.com/panduza/panduza-go/pkg/router"
	"github.com/panduza/panduza-go/pkg/wire"
)

// FollowConfig configures a Follower.
type FollowConfig struct {
	// Capacity of the structure mailbox (default router.DefaultCapacity).
	Capacity int

	// Backoff paces the last-value queries sent until the index is ready.
	Backoff backoff.Config

	// Frames decodes structure frames (default wire.CBORFrames).
	Frames wire.FrameCodec

	Logger  *slog.Logger
	Tracer  *log.Tracer
	Metrics *metrics.Metrics
}

// Follower feeds an Index from the structure topic.
type Follower struct {
	index    *Index
	listener *router.Listener
	router   *router.Router
	topic    string
	frames   wire.FrameCodec
	logger   *slog.Logger
	tracer   *log.Tracer
	metrics  *metrics.Metrics

	// applyMu serialises live frames and retained seeds.
	applyMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StructureTopic returns the structure state topic under prefix.
func StructureTopic(prefix string) string {
	return wire.AttTopic(wire.Join(prefix, wire.StructureBase))
}

// Follow subscribes to the structure topic of the index prefix and applies
// every frame. Until the first frame arrives, the last retained value is
// queried repeatedly with exponential backoff.
func Follow(ctx context.Context, x *Index, r *router.Router, cfg FollowConfig) (*Follower, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	frames := cfg.Frames
	if frames == nil {
		frames = wire.CBORFrames
	}
	topic := StructureTopic(x.Prefix())
	l, err := r.RegisterListener(ctx, topic, cfg.Capacity)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f := &Follower{
		index:    x,
		listener: l,
		router:   r,
		topic:    topic,
		frames:   frames,
		logger:   logger,
		tracer:   cfg.Tracer,
		metrics:  cfg.Metrics,
		cancel:   cancel,
	}

	f.wg.Add(2)
	go f.run(runCtx)
	go f.prime(runCtx, backoff.New(cfg.Backoff))
	return f, nil
}

// Topic returns the followed topic.
func (f *Follower) Topic() string {
	return f.topic
}

func (f *Follower) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.listener.Done():
			return
		case <-f.listener.Ready():
		}
		for {
			s, ok := f.listener.TryRecv()
			if !ok {
				break
			}
			f.apply(s.Payload)
		}
	}
}

func (f *Follower) prime(ctx context.Context, b *backoff.Backoff) {
	defer f.wg.Done()
	for !f.index.IsReady() {
		replies, err := f.router.Query(ctx, f.topic)
		if err != nil {
			f.logger.Debug("structure query failed", "topic", f.topic, "error", err)
		} else {
			for s := range replies {
				f.seed(s.Payload)
			}
		}
		if f.index.IsReady() {
			return
		}
		select {
		case <-f.index.Ready():
			return
		default:
		}
		if err := b.Wait(ctx); err != nil {
			return
		}
	}
}

// apply applies a live frame.
func (f *Follower) apply(data []byte) {
	f.applyMu.Lock()
	defer f.applyMu.Unlock()
	f.applyLocked(data)
}

// seed applies a retained frame unless a live frame got there first; a
// live frame is never older than the retained one.
func (f *Follower) seed(data []byte) {
	f.applyMu.Lock()
	defer f.applyMu.Unlock()
	if f.index.IsReady() {
		return
	}
	f.applyLocked(data)
}

func (f *Follower) applyLocked(data []byte) {
	if err := f.index.ApplyFrame(f.frames, data); err != nil {
		f.metrics.DecodeError()
		f.tracer.DecodeError(f.topic, data, err)
		f.logger.Warn("structure frame dropped", "topic", f.topic, "error", err)
		return
	}
	f.tracer.State(log.StateEntityStructure, f.topic, "", "updated", "")
}

// Close stops following and releases the subscription.
func (f *Follower) Close() error {
	f.cancel()
	err := f.listener.Close()
	f.wg.Wait()
	return err
}
