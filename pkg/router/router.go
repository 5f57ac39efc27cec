// Package router multiplexes one transport subscription per topic onto any
// number of in-process listeners.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panduza/panduza-go/pkg/log"
	"github.com/panduza/panduza-go/pkg/metrics"
	"github.com/panduza/panduza-go/pkg/transport"
)

// Config configures a Router.
type Config struct {
	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Tracer records inbound frames. May be nil.
	Tracer *log.Tracer

	// Metrics records frame counts. May be nil.
	Metrics *metrics.Metrics
}

// Router holds the mapping topic -> listeners. Each topic is subscribed on
// the transport once, while at least one listener is open.
type Router struct {
	session transport.Session
	logger  *slog.Logger
	tracer  *log.Tracer
	metrics *metrics.Metrics

	mu     sync.Mutex
	routes map[string]*route
	closed bool
}

type route struct {
	topic     string
	sub       transport.Subscription
	listeners []*Listener
}

// New creates a Router over session.
func New(session transport.Session, cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		session: session,
		logger:  logger,
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
		routes:  make(map[string]*route),
	}
}

// Session returns the underlying transport session.
func (r *Router) Session() transport.Session {
	return r.session
}

// Listener is one receiver registered on a topic.
type Listener struct {
	*Mailbox
	router *Router
	topic  string
}

// Topic returns the listened topic.
func (l *Listener) Topic() string {
	return l.topic
}

// Close closes the mailbox and releases the transport subscription when
// this was the last listener of the topic. Safe to call more than once.
func (l *Listener) Close() error {
	if !l.Mailbox.close() {
		return nil
	}
	return l.router.collect(l.topic)
}

// RegisterListener returns a new listener on topic, subscribing on the
// transport when the topic has no listener yet.
func (r *Router) RegisterListener(ctx context.Context, topic string, capacity int) (*Listener, error) {
	l := &Listener{Mailbox: NewMailbox(capacity), router: r, topic: topic}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, transport.ErrSessionClosed
	}

	if rt, ok := r.routes[topic]; ok {
		rt.listeners = append(rt.listeners, l)
		return l, nil
	}

	rt := &route{topic: topic, listeners: []*Listener{l}}
	sub, err := r.session.Subscribe(ctx, topic, func(s transport.Sample) {
		r.deliver(rt, s)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	rt.sub = sub
	r.routes[topic] = rt
	r.metrics.RouteAdded()
	r.logger.Debug("route added", "topic", topic)
	return l, nil
}

// deliver runs on the transport's delivery goroutine for the route, so
// pushes for one topic happen in broker order.
func (r *Router) deliver(rt *route, s transport.Sample) {
	r.metrics.FrameReceived()
	r.tracer.Frame(log.DirectionIn, s.Topic, s.Payload)

	r.mu.Lock()
	listeners := rt.listeners
	r.mu.Unlock()

	stale := false
	for _, l := range listeners {
		ok, evicted := l.push(s)
		if !ok {
			stale = true
			continue
		}
		if evicted {
			r.metrics.FrameDropped()
			r.logger.Debug("mailbox full, oldest frame dropped", "topic", rt.topic)
		}
	}
	if !stale {
		return
	}
	// Unsubscribing waits on the broker, which may be blocked delivering
	// to this very handler.
	if sub := r.prune(rt.topic); sub != nil {
		go func() {
			if err := sub.Unsubscribe(); err != nil {
				r.logger.Warn("route release failed", "topic", rt.topic, "error", err)
			}
		}()
	}
}

// collect removes closed listeners of topic and releases the transport
// subscription when none remain.
func (r *Router) collect(topic string) error {
	if sub := r.prune(topic); sub != nil {
		return sub.Unsubscribe()
	}
	return nil
}

// prune drops closed listeners of topic. When none remain it removes the
// route and returns its subscription for the caller to release.
func (r *Router) prune(topic string) transport.Subscription {
	r.mu.Lock()
	rt, ok := r.routes[topic]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	live := make([]*Listener, 0, len(rt.listeners))
	for _, l := range rt.listeners {
		if !l.Closed() {
			live = append(live, l)
		}
	}
	rt.listeners = live
	if len(live) > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.routes, topic)
	r.mu.Unlock()

	r.metrics.RouteRemoved()
	r.logger.Debug("route removed", "topic", topic)
	return rt.sub
}

// RegisterPublisher declares a publisher on topic.
func (r *Router) RegisterPublisher(ctx context.Context, topic string, retain bool) (transport.Publisher, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, transport.ErrSessionClosed
	}
	return r.session.DeclarePublisher(ctx, topic, transport.PublisherOptions{Retain: retain})
}

// Query runs a one-shot last-value query on topic.
func (r *Router) Query(ctx context.Context, topic string) (<-chan transport.Sample, error) {
	return r.session.Get(ctx, topic)
}

// Topics returns the currently routed topics.
func (r *Router) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.routes))
	for t := range r.routes {
		out = append(out, t)
	}
	return out
}

// ListenerCount returns the number of listeners registered on topic.
func (r *Router) ListenerCount(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.routes[topic]; ok {
		return len(rt.listeners)
	}
	return 0
}

// Close closes every listener and releases their subscriptions. The
// session itself is left open.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	routes := r.routes
	r.routes = make(map[string]*route)
	r.mu.Unlock()

	var firstErr error
	for _, rt := range routes {
		for _, l := range rt.listeners {
			l.Mailbox.close()
		}
		if err := rt.sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.metrics.RouteRemoved()
	}
	return firstErr
}
