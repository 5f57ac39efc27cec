package transport

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is an in-process broker. It keeps the last retained payload of every
// topic and delivers samples to each subscription in publication order.
type Bus struct {
	mu       sync.Mutex
	subs     map[string]map[*memSubscription]struct{}
	retained map[string][]byte
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:     make(map[string]map[*memSubscription]struct{}),
		retained: make(map[string][]byte),
	}
}

var (
	busesMu sync.Mutex
	buses   = make(map[string]*Bus)
)

// SharedBus returns the process-wide bus reachable through the endpoint
// "mem/<name>", creating it on first use.
func SharedBus(name string) *Bus {
	busesMu.Lock()
	defer busesMu.Unlock()
	b, ok := buses[name]
	if !ok {
		b = NewBus()
		buses[name] = b
	}
	return b
}

// ReleaseBus forgets the shared bus registered under name.
func ReleaseBus(name string) {
	busesMu.Lock()
	delete(buses, name)
	busesMu.Unlock()
}

// Retained returns a copy of the retained payload of topic.
func (b *Bus) Retained(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.retained[topic]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), p...), true
}

// Retain stores payload as the retained value of topic without delivering
// it to subscribers.
func (b *Bus) Retain(topic string, payload []byte) {
	b.mu.Lock()
	b.retained[topic] = append([]byte(nil), payload...)
	b.mu.Unlock()
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Bus) publish(topic string, payload []byte, retain bool) {
	data := append([]byte(nil), payload...)

	b.mu.Lock()
	if retain {
		b.retained[topic] = data
	}
	targets := make([]*memSubscription, 0, len(b.subs[topic]))
	for s := range b.subs[topic] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.enqueue(Sample{Topic: topic, Payload: data})
	}
}

func (b *Bus) add(s *memSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[s.topic]
	if !ok {
		set = make(map[*memSubscription]struct{})
		b.subs[s.topic] = set
	}
	set[s] = struct{}{}
}

func (b *Bus) remove(s *memSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[s.topic]
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.topic)
	}
}

// MemorySession is a Session attached to a Bus.
type MemorySession struct {
	bus    *Bus
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*memSubscription]struct{}
	pubs   map[*memPublisher]struct{}
}

// NewMemorySession attaches a new session to bus.
func NewMemorySession(bus *Bus, logger *slog.Logger) *MemorySession {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemorySession{
		bus:    bus,
		logger: logger,
		subs:   make(map[*memSubscription]struct{}),
		pubs:   make(map[*memPublisher]struct{}),
	}
}

// Bus returns the bus the session is attached to.
func (s *MemorySession) Bus() *Bus {
	return s.bus
}

// Subscribe implements Session.
func (s *MemorySession) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memSubscription{
		session: s,
		topic:   topic,
		handler: h,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.bus.add(sub)
	go sub.run()
	s.logger.Debug("memory subscribe", "topic", topic)
	return sub, nil
}

// DeclarePublisher implements Session.
func (s *MemorySession) DeclarePublisher(ctx context.Context, topic string, opts PublisherOptions) (Publisher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pub := &memPublisher{session: s, topic: topic, retain: opts.Retain}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.pubs[pub] = struct{}{}
	return pub, nil
}

// Get implements Session. The channel yields the retained payload of topic,
// if any, then closes.
func (s *MemorySession) Get(ctx context.Context, topic string) (<-chan Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	out := make(chan Sample, 1)
	if p, ok := s.bus.Retained(topic); ok {
		out <- Sample{Topic: topic, Payload: p}
	}
	close(out)
	return out, nil
}

// Close implements Session.
func (s *MemorySession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.pubs = nil
	s.mu.Unlock()

	s.logger.Debug("memory session closed", "subscriptions", len(subs))
	for sub := range subs {
		sub.stop()
	}
	return nil
}

func (s *MemorySession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MemorySession) forget(sub *memSubscription) {
	s.mu.Lock()
	if s.subs != nil {
		delete(s.subs, sub)
	}
	s.mu.Unlock()
}

type memSubscription struct {
	session *MemorySession
	topic   string
	handler Handler

	mu    sync.Mutex
	queue []Sample

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (m *memSubscription) Topic() string { return m.topic }

func (m *memSubscription) Unsubscribe() error {
	m.session.forget(m)
	m.stop()
	return nil
}

func (m *memSubscription) stop() {
	m.stopOnce.Do(func() {
		m.session.bus.remove(m)
		close(m.done)
	})
}

func (m *memSubscription) enqueue(s Sample) {
	m.mu.Lock()
	m.queue = append(m.queue, s)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run delivers queued samples sequentially, preserving publication order.
func (m *memSubscription) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			next := m.queue[0]
			m.queue[0] = Sample{}
			m.queue = m.queue[1:]
			m.mu.Unlock()

			select {
			case <-m.done:
				return
			default:
			}
			m.handler(next)
		}
	}
}

type memPublisher struct {
	session *MemorySession
	topic   string
	retain  bool

	mu     sync.Mutex
	closed bool
}

func (p *memPublisher) Topic() string { return p.topic }

func (p *memPublisher) Put(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}
	if p.session.isClosed() {
		return ErrSessionClosed
	}
	p.session.bus.publish(p.topic, payload, p.retain)
	return nil
}

func (p *memPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.session.mu.Lock()
	if p.session.pubs != nil {
		delete(p.session.pubs, p)
	}
	p.session.mu.Unlock()
	return nil
}
