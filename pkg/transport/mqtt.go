package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTT quality of service used for every subscription and publication.
const mqttQoS byte = 1

// disconnectQuiesce is the time given to in-flight work on Close, in ms.
const disconnectQuiesce = 250

// MQTTSession is a Session backed by an MQTT broker. The broker allows one
// handler per filter, so the session subscribes once per topic and fans
// samples out locally. The last payload seen on each subscribed topic is
// cached to answer Get without a broker round trip.
type MQTTSession struct {
	client mqtt.Client
	logger *slog.Logger
	window time.Duration

	// brokerMu serialises broker subscribe/unsubscribe calls.
	brokerMu sync.Mutex

	mu     sync.Mutex
	closed bool
	topics map[string]*mqttTopic
	nextID uint64
}

type mqttTopic struct {
	handlers map[uint64]Handler
	last     []byte
	hasLast  bool
}

// mqttClientFactory is replaced in tests.
var mqttClientFactory = mqtt.NewClient

// DialMQTT connects to the first reachable endpoint of cfg.
func DialMQTT(ctx context.Context, cfg SessionConfig) (*MQTTSession, error) {
	s := &MQTTSession{
		logger: cfg.logger(),
		window: cfg.retainWindow(),
		topics: make(map[string]*mqttTopic),
	}

	opts := mqtt.NewClientOptions()
	for _, raw := range cfg.Connect.Endpoints {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return nil, err
		}
		switch ep.Scheme {
		case SchemeTCP:
			opts.AddBroker("tcp://" + ep.Address)
		case SchemeTLS:
			opts.AddBroker("tls://" + ep.Address)
		default:
			return nil, fmt.Errorf("mqtt backend cannot use endpoint %q", raw)
		}
	}

	if files := cfg.TLS(); files != nil {
		tlsConfig, err := LoadTLSConfig(files, "")
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "pza-" + uuid.NewString()
	}
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.connectTimeout())
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	s.client = mqttClientFactory(opts)

	ctx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()
	if err := waitToken(ctx, s.client.Connect()); err != nil {
		s.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	s.logger.Info("mqtt session opened", "endpoints", cfg.Connect.Endpoints, "client_id", clientID)
	return s, nil
}

// onConnect restores broker subscriptions after a reconnect.
func (s *MQTTSession) onConnect(c mqtt.Client) {
	s.mu.Lock()
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	s.mu.Unlock()

	for _, t := range topics {
		tok := c.Subscribe(t, mqttQoS, s.onMessage)
		if tok.Wait() && tok.Error() != nil {
			s.logger.Error("mqtt resubscribe failed", "topic", t, "error", tok.Error())
		}
	}
	if len(topics) > 0 {
		s.logger.Info("mqtt session reconnected", "topics", len(topics))
	}
}

func (s *MQTTSession) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Warn("mqtt connection lost", "error", err)
}

func (s *MQTTSession) onMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	payload := append([]byte(nil), msg.Payload()...)

	s.mu.Lock()
	t, ok := s.topics[topic]
	if !ok {
		s.mu.Unlock()
		return
	}
	t.last = payload
	t.hasLast = true
	handlers := make([]Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	sample := Sample{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(sample)
	}
}

// Subscribe implements Session.
func (s *MQTTSession) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	s.brokerMu.Lock()
	defer s.brokerMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.nextID++
	id := s.nextID
	t, exists := s.topics[topic]
	if !exists {
		t = &mqttTopic{handlers: make(map[uint64]Handler)}
		s.topics[topic] = t
	}
	t.handlers[id] = h
	s.mu.Unlock()

	if !exists {
		if err := waitToken(ctx, s.client.Subscribe(topic, mqttQoS, s.onMessage)); err != nil {
			s.mu.Lock()
			delete(s.topics, topic)
			s.mu.Unlock()
			return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, err)
		}
	}
	return &mqttSubscription{session: s, topic: topic, id: id}, nil
}

func (s *MQTTSession) unsubscribe(topic string, id uint64) error {
	s.brokerMu.Lock()
	defer s.brokerMu.Unlock()

	s.mu.Lock()
	t, ok := s.topics[topic]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(t.handlers, id)
	last := len(t.handlers) == 0
	if last {
		delete(s.topics, topic)
	}
	closed := s.closed
	s.mu.Unlock()

	if !last || closed {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultConnectTimeout)
	defer cancel()
	if err := waitToken(ctx, s.client.Unsubscribe(topic)); err != nil {
		return fmt.Errorf("mqtt unsubscribe %s: %w", topic, err)
	}
	return nil
}

// DeclarePublisher implements Session.
func (s *MQTTSession) DeclarePublisher(_ context.Context, topic string, opts PublisherOptions) (Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return &mqttPublisher{session: s, topic: topic, retain: opts.Retain}, nil
}

// Get implements Session. A cached value is returned at once; otherwise a
// temporary subscription waits for the broker's retained message.
func (s *MQTTSession) Get(ctx context.Context, topic string) (<-chan Sample, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	out := make(chan Sample, 1)
	if t, ok := s.topics[topic]; ok && t.hasLast {
		out <- Sample{Topic: topic, Payload: t.last}
		close(out)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	got := make(chan Sample, 1)
	sub, err := s.Subscribe(ctx, topic, func(smp Sample) {
		select {
		case got <- smp:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		timer := time.NewTimer(s.window)
		defer timer.Stop()
		select {
		case smp := <-got:
			out <- smp
		case <-timer.C:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// Close implements Session.
func (s *MQTTSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.topics = make(map[string]*mqttTopic)
	s.mu.Unlock()

	s.client.Disconnect(disconnectQuiesce)
	s.logger.Info("mqtt session closed")
	return nil
}

func (s *MQTTSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type mqttSubscription struct {
	session *MQTTSession
	topic   string
	id      uint64
	once    sync.Once
}

func (m *mqttSubscription) Topic() string { return m.topic }

func (m *mqttSubscription) Unsubscribe() error {
	var err error
	m.once.Do(func() {
		err = m.session.unsubscribe(m.topic, m.id)
	})
	return err
}

type mqttPublisher struct {
	session *MQTTSession
	topic   string
	retain  bool

	mu     sync.Mutex
	closed bool
}

func (p *mqttPublisher) Topic() string { return p.topic }

func (p *mqttPublisher) Put(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}
	if p.session.isClosed() {
		return ErrSessionClosed
	}
	if err := waitToken(ctx, p.session.client.Publish(p.topic, mqttQoS, p.retain, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *mqttPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// waitToken waits for a paho token or the context, whichever ends first.
func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
