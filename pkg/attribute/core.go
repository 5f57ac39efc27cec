package attribute

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/log"
	"github.com/panduza/panduza-go/pkg/metrics"
	"github.com/panduza/panduza-go/pkg/router"
	"github.com/panduza/panduza-go/pkg/transport"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Default timeouts.
const (
	DefaultConfirmTimeout = 5 * time.Second
	DefaultPrimeTimeout   = 5 * time.Second
)

// CallbackID identifies a registered callback within one core.
type CallbackID uint64

// Callback is invoked with every inbound value accepted by its condition.
// Callbacks for one frame run concurrently; the core waits for all of them
// before it processes the next frame.
type Callback[T any] func(ctx context.Context, value T) error

// Condition filters the values a callback is invoked with.
type Condition[T any] func(value T) bool

// Options configures a core.
type Options struct {
	// Topic is the attribute base topic, without /att or /cmd.
	Topic string

	// Mode constrains the allowed operations.
	Mode wire.Mode

	Router *router.Router

	// Capacity is the inbound mailbox capacity (default 20).
	Capacity int

	// PrimeTimeout bounds the initial last-value query (default 5s).
	// A negative value skips the query.
	PrimeTimeout time.Duration

	// ConfirmTimeout bounds the write confirmation wait (default 5s).
	ConfirmTimeout time.Duration

	// Source is the producer id stamped on published headers.
	Source uint16

	// Frames encodes and decodes bus frames (default wire.CBORFrames).
	Frames wire.FrameCodec

	// Sequence numbers published headers. A private sequence is used when nil.
	Sequence *Sequence

	Logger  *slog.Logger
	Tracer  *log.Tracer
	Metrics *metrics.Metrics

	// OnRelease runs once after the last handle is closed.
	OnRelease func()
}

type callback[T any] struct {
	id    CallbackID
	owner uint64
	fn    Callback[T]
	cond  Condition[T]
}

type waiter[T any] struct {
	match func(T) bool
	ch    chan T
}

// Core is the shared state of one attribute: last value, callbacks,
// waiters and the inbound task. Handles share a core by reference counting.
type Core[T any] struct {
	topic    string
	attTopic string
	cmdTopic string
	mode     wire.Mode
	codec    Codec[T]
	frames   wire.FrameCodec

	listener  *router.Listener
	publisher transport.Publisher
	source    uint16
	seq       *Sequence

	confirmTimeout time.Duration
	logger         *slog.Logger
	tracer         *log.Tracer
	metrics        *metrics.Metrics
	onRelease      func()

	mu         sync.Mutex
	last       T
	hasLast    bool
	lastHeader wire.Header
	callbacks  map[CallbackID]*callback[T]
	nextID     CallbackID
	changed    chan struct{}
	waiters    map[uint64]*waiter[T]
	nextWaiter uint64
	queueOn    bool
	queue      []T
	refs       int
	nextHandle uint64
	released   bool
	opened     bool
	closedIn   bool

	controlMu sync.Mutex
	control   []func()
	wake      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Open builds a core: it registers the inbound listener, starts the inbound
// task, primes the cache for readable modes and declares the command
// publisher for writable modes.
func Open[T any](ctx context.Context, codec Codec[T], opts Options) (*Core[T], error) {
	if opts.Router == nil {
		return nil, pzaerrors.New(pzaerrors.ErrConfig, "open", opts.Topic, fmt.Errorf("router is required"))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seq := opts.Sequence
	if seq == nil {
		seq = NewSequence()
	}
	frames := opts.Frames
	if frames == nil {
		frames = wire.CBORFrames
	}
	confirm := opts.ConfirmTimeout
	if confirm <= 0 {
		confirm = DefaultConfirmTimeout
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Core[T]{
		topic:          opts.Topic,
		attTopic:       wire.AttTopic(opts.Topic),
		cmdTopic:       wire.CmdTopic(opts.Topic),
		mode:           opts.Mode,
		codec:          codec,
		frames:         frames,
		source:         opts.Source,
		seq:            seq,
		confirmTimeout: confirm,
		logger:         logger.With("topic", opts.Topic),
		tracer:         opts.Tracer,
		metrics:        opts.Metrics,
		onRelease:      opts.OnRelease,
		callbacks:      make(map[CallbackID]*callback[T]),
		changed:        make(chan struct{}),
		waiters:        make(map[uint64]*waiter[T]),
		wake:           make(chan struct{}, 1),
		ctx:            runCtx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	l, err := opts.Router.RegisterListener(ctx, c.attTopic, opts.Capacity)
	if err != nil {
		cancel()
		return nil, pzaerrors.New(pzaerrors.ErrSubscribe, "open", c.attTopic, err)
	}
	c.listener = l
	go c.run()

	if c.mode.Writable() && codec.Encode(*new(T)) != nil {
		pub, err := opts.Router.RegisterPublisher(ctx, c.cmdTopic, false)
		if err != nil {
			c.shutdown()
			return nil, pzaerrors.New(pzaerrors.ErrPublish, "open", c.cmdTopic, err)
		}
		c.publisher = pub
	}

	if c.mode.Readable() && opts.PrimeTimeout >= 0 {
		timeout := opts.PrimeTimeout
		if timeout == 0 {
			timeout = DefaultPrimeTimeout
		}
		if err := c.prime(ctx, opts.Router, timeout); err != nil {
			c.shutdown()
			return nil, err
		}
	}

	c.mu.Lock()
	c.opened = true
	c.mu.Unlock()
	c.metrics.AttributeOpened()
	c.tracer.State(log.StateEntityAttribute, c.topic, "", "open", c.mode.String())
	c.logger.Debug("attribute opened", "mode", c.mode, "kind", codec.Kind())
	return c, nil
}

// prime seeds the cache with the retained value of the state topic. A query
// that completes without a value leaves the cache empty.
func (c *Core[T]) prime(ctx context.Context, r *router.Router, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replies, err := r.Query(ctx, c.attTopic)
	if err != nil {
		return pzaerrors.New(pzaerrors.ErrSubscribe, "prime", c.attTopic, err)
	}
	for {
		select {
		case s, ok := <-replies:
			if !ok {
				return nil
			}
			c.seed(s.Payload)
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return pzaerrors.New(pzaerrors.ErrTimeout, "prime", c.attTopic, ctx.Err())
			}
			return ctx.Err()
		}
	}
}

// seed stores a primed value unless a live frame got there first.
func (c *Core[T]) seed(data []byte) {
	msg, v, err := c.decode(data)
	if err != nil {
		c.decodeFailed(data, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasLast {
		return
	}
	c.store(msg.Header, v)
}

func (c *Core[T]) decode(data []byte) (*wire.Message, T, error) {
	var zero T
	msg, err := c.frames.Decode(data)
	if err != nil {
		return nil, zero, err
	}
	if msg.Kind() != c.codec.Kind() {
		return nil, zero, fmt.Errorf("expected %s payload, got %s", c.codec.Kind(), msg.Kind())
	}
	v, err := c.codec.Decode(msg.Payload)
	if err != nil {
		return nil, zero, err
	}
	return msg, v, nil
}

func (c *Core[T]) decodeFailed(data []byte, err error) {
	c.metrics.DecodeError()
	c.tracer.DecodeError(c.attTopic, data, err)
	c.logger.Warn("inbound frame dropped", "error", pzaerrors.New(pzaerrors.ErrDecode, "decode", c.attTopic, err))
}

// store updates the cache and wakes observers. It returns the cached value,
// which may carry metadata merged from the previous frame. Must hold c.mu.
func (c *Core[T]) store(h wire.Header, v T) T {
	if m, ok := c.codec.(merger[T]); ok && c.hasLast {
		v = m.Merge(c.last, v)
	}
	c.last = v
	c.hasLast = true
	c.lastHeader = h
	if c.queueOn {
		c.queue = append(c.queue, v)
	}
	close(c.changed)
	c.changed = make(chan struct{})
	return v
}

// run is the inbound task. It owns frame processing and the control queue.
func (c *Core[T]) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.runControl()
			return
		case <-c.wake:
			c.runControl()
		case <-c.listener.Ready():
			for {
				s, ok := c.listener.TryRecv()
				if !ok {
					break
				}
				c.runControl()
				c.process(s)
			}
		case <-c.listener.Done():
			c.runControl()
			c.failWaiters()
			return
		}
	}
}

func (c *Core[T]) process(s transport.Sample) {
	msg, v, err := c.decode(s.Payload)
	if err != nil {
		c.decodeFailed(s.Payload, err)
		return
	}
	c.tracer.Message(log.DirectionIn, s.Topic, msg)

	c.mu.Lock()
	v = c.store(msg.Header, v)
	for id, w := range c.waiters {
		if w.match(v) {
			w.ch <- v
			delete(c.waiters, id)
		}
	}
	snapshot := make([]*callback[T], 0, len(c.callbacks))
	for _, cb := range c.callbacks {
		snapshot = append(snapshot, cb)
	}
	c.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	var g errgroup.Group
	for _, cb := range snapshot {
		if cb.cond != nil && !cb.cond(v) {
			continue
		}
		g.Go(func() error {
			if err := cb.fn(c.ctx, v); err != nil {
				c.logger.Warn("callback failed", "callback", cb.id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// enqueue schedules fn on the inbound task. It never blocks.
func (c *Core[T]) enqueue(fn func()) {
	c.controlMu.Lock()
	c.control = append(c.control, fn)
	c.controlMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Core[T]) runControl() {
	c.controlMu.Lock()
	pending := c.control
	c.control = nil
	c.controlMu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Topic returns the attribute base topic.
func (c *Core[T]) Topic() string { return c.topic }

// Mode returns the access mode.
func (c *Core[T]) Mode() wire.Mode { return c.mode }

// Kind returns the payload kind.
func (c *Core[T]) Kind() wire.PayloadKind { return c.codec.Kind() }

// Done is closed when the inbound task has stopped.
func (c *Core[T]) Done() <-chan struct{} { return c.done }

// Get returns the latest received value.
func (c *Core[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// LastHeader returns the header of the latest received frame.
func (c *Core[T]) LastHeader() (wire.Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeader, c.hasLast
}

// Changed returns a channel closed by the next inbound frame.
func (c *Core[T]) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Shoot publishes v on the command topic without waiting for confirmation.
func (c *Core[T]) Shoot(ctx context.Context, v T) error {
	if !c.mode.Writable() || c.publisher == nil {
		return pzaerrors.New(pzaerrors.ErrInvalidMode, "shoot", c.topic, nil)
	}
	return c.publish(ctx, "shoot", v)
}

// Set publishes v and, for read-write attributes, waits until a frame
// equal to v arrives on the state topic. Write-only attributes return once
// published. The confirmation wait is registered before publishing so a
// fast echo cannot be missed.
func (c *Core[T]) Set(ctx context.Context, v T) error {
	if !c.mode.Writable() || c.publisher == nil {
		return pzaerrors.New(pzaerrors.ErrInvalidMode, "set", c.topic, nil)
	}
	if c.mode != wire.ModeReadWrite {
		return c.publish(ctx, "set", v)
	}

	ch, cancel, err := c.register(func(got T) bool { return c.codec.Equal(got, v) })
	if err != nil {
		return err
	}
	defer cancel()

	start := time.Now()
	if err := c.publish(ctx, "set", v); err != nil {
		return err
	}

	timer := time.NewTimer(c.confirmTimeout)
	defer timer.Stop()
	select {
	case _, ok := <-ch:
		if !ok {
			return pzaerrors.New(pzaerrors.ErrChannelClosed, "set", c.topic, nil)
		}
		c.metrics.Confirmed(time.Since(start))
		return nil
	case <-timer.C:
		c.metrics.ConfirmTimedOut()
		return pzaerrors.New(pzaerrors.ErrTimeout, "set", c.topic, fmt.Errorf("no confirmation within %s", c.confirmTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core[T]) publish(ctx context.Context, op string, v T) error {
	payload := c.codec.Encode(v)
	if payload == nil {
		return pzaerrors.New(pzaerrors.ErrInvalidMode, op, c.topic, nil)
	}
	msg := wire.NewMessage(c.source, c.seq.Next(), payload)
	data, err := c.frames.Encode(msg)
	if err != nil {
		return pzaerrors.New(pzaerrors.ErrPublish, op, c.cmdTopic, err)
	}
	err = c.publisher.Put(ctx, data)
	c.metrics.Published(err)
	if err != nil {
		c.tracer.Error(log.LayerAttribute, log.DirectionOut, c.cmdTopic, op, err)
		return pzaerrors.New(pzaerrors.ErrPublish, op, c.cmdTopic, err)
	}
	c.tracer.Message(log.DirectionOut, c.cmdTopic, msg)
	return nil
}

// register adds a transient waiter satisfied by the next frame accepted by
// match. The returned cancel unregisters it.
func (c *Core[T]) register(match func(T) bool) (<-chan T, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerLocked(match)
}

// registerLocked is register with c.mu held.
func (c *Core[T]) registerLocked(match func(T) bool) (<-chan T, func(), error) {
	if c.released || c.closedIn {
		return nil, nil, pzaerrors.New(pzaerrors.ErrChannelClosed, "wait", c.topic, nil)
	}
	c.nextWaiter++
	id := c.nextWaiter
	w := &waiter[T]{match: match, ch: make(chan T, 1)}
	c.waiters[id] = w
	return w.ch, func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}, nil
}

// WaitFor returns the cached value when it satisfies match, and otherwise
// waits for the next inbound frame that does. The cache check and the
// waiter registration share one critical section so no frame falls between
// them. A timeout <= 0 waits until ctx is done.
func (c *Core[T]) WaitFor(ctx context.Context, match func(T) bool, timeout time.Duration) (T, error) {
	var zero T
	c.mu.Lock()
	if c.hasLast && match(c.last) {
		v := c.last
		c.mu.Unlock()
		return v, nil
	}
	ch, cancel, err := c.registerLocked(match)
	c.mu.Unlock()
	if err != nil {
		return zero, err
	}
	defer cancel()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, pzaerrors.New(pzaerrors.ErrChannelClosed, "wait", c.topic, nil)
		}
		return v, nil
	case <-expired:
		return zero, pzaerrors.New(pzaerrors.ErrTimeout, "wait", c.topic, fmt.Errorf("no matching value within %s", timeout))
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// AddCallback registers fn for every inbound frame accepted by cond (nil
// accepts all). Ids are unique and increasing within the core.
func (c *Core[T]) AddCallback(fn Callback[T], cond Condition[T]) CallbackID {
	return c.addCallback(0, fn, cond)
}

func (c *Core[T]) addCallback(owner uint64, fn Callback[T], cond Condition[T]) CallbackID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.callbacks[id] = &callback[T]{id: id, owner: owner, fn: fn, cond: cond}
	return id
}

// RemoveCallback unregisters a callback. Frames decoded after the call never
// reach it.
func (c *Core[T]) RemoveCallback(id CallbackID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.callbacks[id]; !ok {
		return false
	}
	delete(c.callbacks, id)
	return true
}

// ClearCallbacks unregisters every callback.
func (c *Core[T]) ClearCallbacks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.callbacks)
}

// CallbackCount returns the number of registered callbacks.
func (c *Core[T]) CallbackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.callbacks)
}

// EnableInputQueue switches on or off the FIFO of received values. Values
// already queued are kept either way.
func (c *Core[T]) EnableInputQueue(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueOn = on
}

// Pop removes and returns the oldest queued value.
func (c *Core[T]) Pop() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if len(c.queue) == 0 {
		return zero, false
	}
	v := c.queue[0]
	c.queue[0] = zero
	c.queue = c.queue[1:]
	return v, true
}

// QueueLen returns the number of queued values.
func (c *Core[T]) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Acquire returns a new handle on the core, or false once the core has been
// released.
func (c *Core[T]) Acquire() (*Handle[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, false
	}
	c.refs++
	c.nextHandle++
	return &Handle[T]{core: c, id: c.nextHandle}, true
}

// release drops one reference. The handle's callbacks are removed by the
// inbound task; the last reference shuts the core down.
func (c *Core[T]) release(handle uint64) {
	c.enqueue(func() {
		c.mu.Lock()
		for id, cb := range c.callbacks {
			if cb.owner == handle {
				delete(c.callbacks, id)
			}
		}
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.refs--
	last := c.refs <= 0 && !c.released
	c.mu.Unlock()
	if last {
		c.shutdown()
	}
}

// shutdown stops the inbound task, releases the route and the publisher,
// and fails pending waiters with ErrChannelClosed.
func (c *Core[T]) shutdown() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	opened := c.opened
	c.mu.Unlock()
	c.failWaiters()

	c.cancel()
	if err := c.listener.Close(); err != nil {
		c.logger.Warn("route release failed", "error", err)
	}
	if c.publisher != nil {
		_ = c.publisher.Close()
	}

	if !opened {
		return
	}
	c.metrics.AttributeClosed()
	c.tracer.State(log.StateEntityAttribute, c.topic, "open", "closed", "")
	c.logger.Debug("attribute released")
	if c.onRelease != nil {
		c.onRelease()
	}
}

// failWaiters wakes every pending waiter with ErrChannelClosed and refuses
// new ones.
func (c *Core[T]) failWaiters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closedIn = true
	for id, w := range c.waiters {
		close(w.ch)
		delete(c.waiters, id)
	}
}
