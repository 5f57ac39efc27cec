package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// LastValuePrefix prefixes the subjects on which retaining publishers
// answer one-shot queries.
const LastValuePrefix = "_PZA.LAST."

// NATSSession is a Session backed by a NATS server. Topics map to subjects
// by replacing "/" with "."; characters NATS reserves are replaced by "_".
//
// NATS keeps no retained messages. Get reads the last message of a
// JetStream stream when one is configured, and otherwise asks the
// retaining publisher of the subject over request/reply.
type NATSSession struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*natsSubscription]struct{}
	pubs   map[*natsPublisher]struct{}
}

// DialNATS connects to the endpoints of cfg.
func DialNATS(ctx context.Context, cfg SessionConfig) (*NATSSession, error) {
	s := &NATSSession{
		stream: cfg.LastValueStream,
		logger: cfg.logger(),
		subs:   make(map[*natsSubscription]struct{}),
		pubs:   make(map[*natsPublisher]struct{}),
	}

	urls := make([]string, 0, len(cfg.Connect.Endpoints))
	for _, raw := range cfg.Connect.Endpoints {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return nil, err
		}
		switch ep.Scheme {
		case SchemeTCP:
			urls = append(urls, "nats://"+ep.Address)
		case SchemeTLS:
			urls = append(urls, "tls://"+ep.Address)
		default:
			return nil, fmt.Errorf("nats backend cannot use endpoint %q", raw)
		}
	}

	opts := []nats.Option{
		nats.Timeout(cfg.connectTimeout()),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(s.handleDisconnect),
		nats.ReconnectHandler(s.handleReconnect),
	}
	if cfg.ClientID != "" {
		opts = append(opts, nats.Name(cfg.ClientID))
	}
	if files := cfg.TLS(); files != nil {
		opts = append(opts,
			nats.ClientCert(files.ConnectCertificate, files.ConnectPrivateKey),
			nats.RootCAs(files.RootCACertificate),
		)
	}

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(strings.Join(urls, ","), opts...)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("nats connect: %w", r.err)
		}
		s.conn = r.conn
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}

	if s.stream != "" {
		js, err := jetstream.New(s.conn)
		if err != nil {
			s.conn.Close()
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		s.js = js
	}

	s.logger.Info("nats session opened", "url", s.conn.ConnectedUrl(), "stream", s.stream)
	return s, nil
}

func (s *NATSSession) handleDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		s.logger.Warn("nats disconnected", "error", err)
	}
}

func (s *NATSSession) handleReconnect(c *nats.Conn) {
	s.logger.Info("nats reconnected", "url", c.ConnectedUrl())
}

// Subject maps a topic onto a NATS subject.
func Subject(topic string) string {
	var b strings.Builder
	b.Grow(len(topic))
	for _, r := range topic {
		switch r {
		case '/':
			b.WriteByte('.')
		case '.', '*', '>', ' ', '\t':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Subscribe implements Session.
func (s *NATSSession) Subscribe(_ context.Context, topic string, h Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	sub, err := s.conn.Subscribe(Subject(topic), func(m *nats.Msg) {
		h(Sample{Topic: topic, Payload: m.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	// The interest must be registered server side before the caller
	// publishes from another connection.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	ns := &natsSubscription{session: s, topic: topic, sub: sub}
	s.subs[ns] = struct{}{}
	return ns, nil
}

// DeclarePublisher implements Session. A retaining publisher answers
// one-shot queries for its subject with the last payload it put.
func (s *NATSSession) DeclarePublisher(_ context.Context, topic string, opts PublisherOptions) (Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	p := &natsPublisher{session: s, topic: topic, subject: Subject(topic)}
	if opts.Retain {
		q, err := s.conn.Subscribe(LastValuePrefix+p.subject, p.answer)
		if err != nil {
			return nil, fmt.Errorf("nats declare %s: %w", topic, err)
		}
		if err := s.conn.Flush(); err != nil {
			_ = q.Unsubscribe()
			return nil, fmt.Errorf("nats declare %s: %w", topic, err)
		}
		p.query = q
	}
	s.pubs[p] = struct{}{}
	return p, nil
}

// Get implements Session.
func (s *NATSSession) Get(ctx context.Context, topic string) (<-chan Sample, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	out := make(chan Sample, 1)
	go func() {
		defer close(out)
		data, ok, err := s.last(ctx, topic)
		if err != nil {
			s.logger.Debug("nats last-value query failed", "topic", topic, "error", err)
			return
		}
		if ok {
			out <- Sample{Topic: topic, Payload: data}
		}
	}()
	return out, nil
}

func (s *NATSSession) last(ctx context.Context, topic string) ([]byte, bool, error) {
	subject := Subject(topic)
	if s.js != nil {
		stream, err := s.js.Stream(ctx, s.stream)
		if err != nil {
			return nil, false, err
		}
		msg, err := stream.GetLastMsgForSubject(ctx, subject)
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return msg.Data, true, nil
	}

	reply, err := s.conn.RequestWithContext(ctx, LastValuePrefix+subject, nil)
	if errors.Is(err, nats.ErrNoResponders) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(reply.Data) == 0 {
		return nil, false, nil
	}
	return reply.Data, true, nil
}

// Close implements Session.
func (s *NATSSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = nil
	s.pubs = nil
	s.mu.Unlock()

	err := s.conn.Drain()
	s.logger.Info("nats session closed")
	return err
}

type natsSubscription struct {
	session *NATSSession
	topic   string
	sub     *nats.Subscription
	once    sync.Once
}

func (n *natsSubscription) Topic() string { return n.topic }

func (n *natsSubscription) Unsubscribe() error {
	var err error
	n.once.Do(func() {
		n.session.mu.Lock()
		closed := n.session.closed
		if n.session.subs != nil {
			delete(n.session.subs, n)
		}
		n.session.mu.Unlock()
		if !closed {
			err = n.sub.Unsubscribe()
		}
	})
	return err
}

type natsPublisher struct {
	session *NATSSession
	topic   string
	subject string
	query   *nats.Subscription

	mu     sync.Mutex
	closed bool
	last   []byte
}

func (p *natsPublisher) Topic() string { return p.topic }

func (p *natsPublisher) Put(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	if p.query != nil {
		p.last = append(p.last[:0], payload...)
	}
	p.mu.Unlock()

	if err := p.session.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *natsPublisher) answer(m *nats.Msg) {
	p.mu.Lock()
	data := append([]byte(nil), p.last...)
	p.mu.Unlock()
	if err := m.Respond(data); err != nil {
		p.session.logger.Debug("nats last-value reply failed", "topic", p.topic, "error", err)
	}
}

func (p *natsPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.query != nil {
		return p.query.Unsubscribe()
	}
	return nil
}
