package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	ErrSessionClosed   = errors.New("session is closed")
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrNoEndpoint      = errors.New("no endpoint configured")
	ErrUnknownBackend  = errors.New("unknown backend")
)

// Sample is one inbound frame.
type Sample struct {
	Topic   string
	Payload []byte
}

// Handler receives the samples of one subscription. Calls for one
// subscription never overlap and arrive in broker order. Handlers must not
// block for long; the broker client's delivery goroutine runs them.
type Handler func(Sample)

// Session is an open connection to the bus. Implementations are safe for
// concurrent use.
type Session interface {
	// Subscribe delivers every sample published on topic to handler.
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)

	// DeclarePublisher prepares publication on topic.
	DeclarePublisher(ctx context.Context, topic string, opts PublisherOptions) (Publisher, error)

	// Get runs a one-shot query for the last value retained on topic.
	// The channel is closed when the query completes; a channel closed
	// without a sample means nothing is retained.
	Get(ctx context.Context, topic string) (<-chan Sample, error)

	// Close releases every subscription and publisher of the session.
	Close() error
}

// Subscription is an active subscriber declaration.
type Subscription interface {
	// Topic returns the subscribed topic.
	Topic() string

	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe() error
}

// Publisher publishes frames on one topic.
type Publisher interface {
	// Topic returns the publication topic.
	Topic() string

	// Put publishes payload.
	Put(ctx context.Context, payload []byte) error

	// Close releases the publisher. It is safe to call more than once.
	Close() error
}

// PublisherOptions configures a publisher.
type PublisherOptions struct {
	// Retain asks the broker to keep the last frame for late subscribers
	// and one-shot queries.
	Retain bool
}

// Compile-time interface satisfaction checks.
var (
	_ Session = (*MemorySession)(nil)
	_ Session = (*MQTTSession)(nil)
	_ Session = (*NATSSession)(nil)
)
