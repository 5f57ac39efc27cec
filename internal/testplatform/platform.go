// Package testplatform simulates a Panduza platform on an in-process bus.
//
// The platform announces a fixed "tester" instance whose attributes cover
// every kind and mode, echoes writes on read-write attributes, counts
// commands on wo_bool and publishes platform status and notifications.
package testplatform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panduza/panduza-go/pkg/transport"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Source is the producer id of every frame published by the platform.
const Source uint16 = 0xD1CE

// NumberJitter is added by the number/rw echo to exercise the decimal
// tolerance of write confirmation.
const NumberJitter = 0.000001

// Options configures a Platform.
type Options struct {
	// Namespace prefixes every topic.
	Namespace string

	// Instance names the simulated device (default "tester").
	Instance string

	Logger *slog.Logger
}

// Platform is a running simulated platform.
type Platform struct {
	name     string
	bus      *transport.Bus
	session  *transport.MemorySession
	prefix   string
	instance string
	logger   *slog.Logger

	mu         sync.Mutex
	publishers map[string]transport.Publisher
	seq        uint16
	counter    int
	commands   map[string]int
	root       wire.Node
}

// Start announces the platform on the shared memory bus called name.
// A reactor reaches it with Backend "memory" and Address name.
func Start(ctx context.Context, name string, opts Options) (*Platform, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	instance := opts.Instance
	if instance == "" {
		instance = "tester"
	}
	bus := transport.SharedBus(name)
	p := &Platform{
		name:       name,
		bus:        bus,
		session:    transport.NewMemorySession(bus, logger),
		prefix:     wire.Prefix(opts.Namespace),
		instance:   instance,
		logger:     logger.With("platform", name),
		publishers: make(map[string]transport.Publisher),
		commands:   make(map[string]int),
	}
	p.root = TesterTree(instance)

	if err := p.start(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Platform) start(ctx context.Context) error {
	// Command handlers outlive ctx.
	hctx := context.Background()
	for _, a := range testerAttributes {
		base := p.Base(a.class, a.name)
		if a.mode.Readable() && a.initial != nil {
			if err := p.Publish(ctx, base, a.initial); err != nil {
				return err
			}
		}
		if !a.mode.Writable() {
			continue
		}
		handler := p.echo(hctx, base, a.transform)
		switch a.name {
		case "wo_bool":
			handler = p.countCommand(hctx)
		case "wo_counter_reset":
			handler = p.resetCounter(hctx, base)
		}
		if a.mode == wire.ModeWriteOnly && a.name != "wo_bool" {
			handler = p.record(base)
		}
		if _, err := p.session.Subscribe(ctx, wire.CmdTopic(base), handler); err != nil {
			return err
		}
	}
	if err := p.SetStatus(ctx, wire.InstanceStatus{Instance: p.instance, State: wire.StateRunning}); err != nil {
		return err
	}
	return p.Announce(ctx)
}

// Bus returns the memory bus.
func (p *Platform) Bus() *transport.Bus { return p.bus }

// Prefix returns the topic prefix.
func (p *Platform) Prefix() string { return p.prefix }

// Base returns the base topic of a tester attribute.
func (p *Platform) Base(class, name string) string {
	return wire.Join(p.prefix, p.instance, class, name)
}

// Root returns the announced structure tree.
func (p *Platform) Root() wire.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.root
}

// Announce publishes the current structure tree.
func (p *Platform) Announce(ctx context.Context) error {
	return p.Publish(ctx, wire.Join(p.prefix, wire.StructureBase), &wire.StructurePayload{Root: p.Root()})
}

// SetStructure replaces the structure tree and announces it.
func (p *Platform) SetStructure(ctx context.Context, root wire.Node) error {
	p.mu.Lock()
	p.root = root
	p.mu.Unlock()
	return p.Announce(ctx)
}

// SetStatus publishes the platform status.
func (p *Platform) SetStatus(ctx context.Context, instances ...wire.InstanceStatus) error {
	return p.Publish(ctx, wire.Join(p.prefix, wire.StatusBase), &wire.StatusPayload{Instances: instances})
}

// Notify publishes a platform notification.
func (p *Platform) Notify(ctx context.Context, typ wire.NotificationType, source, message string) error {
	return p.Publish(ctx, wire.Join(p.prefix, wire.NotificationsBase), &wire.NotificationPayload{
		Type:    typ,
		Source:  source,
		Message: message,
	})
}

// Publish sends payload, retained, on the state topic of base.
func (p *Platform) Publish(ctx context.Context, base string, payload wire.Payload) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	data, err := wire.Encode(wire.NewMessage(Source, seq, payload))
	if err != nil {
		return fmt.Errorf("encode %s: %w", base, err)
	}
	return p.PublishRaw(ctx, wire.AttTopic(base), data)
}

// PublishRaw sends data, retained, on topic.
func (p *Platform) PublishRaw(ctx context.Context, topic string, data []byte) error {
	pub, err := p.publisher(ctx, topic)
	if err != nil {
		return err
	}
	return pub.Put(ctx, data)
}

func (p *Platform) publisher(ctx context.Context, topic string) (transport.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}
	pub, err := p.session.DeclarePublisher(ctx, topic, transport.PublisherOptions{Retain: true})
	if err != nil {
		return nil, err
	}
	p.publishers[topic] = pub
	return pub, nil
}

// Commands returns the number of commands received on base.
func (p *Platform) Commands(base string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commands[base]
}

// Counter returns the wo_bool command counter.
func (p *Platform) Counter() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counter
}

func (p *Platform) decode(s transport.Sample) (*wire.Message, bool) {
	msg, err := wire.Decode(s.Payload)
	if err != nil {
		p.logger.Warn("bad command", "topic", s.Topic, "error", err)
		return nil, false
	}
	base := wire.TrimSuffix(s.Topic)
	p.mu.Lock()
	p.commands[base]++
	p.mu.Unlock()
	return msg, true
}

func (p *Platform) record(base string) transport.Handler {
	return func(s transport.Sample) {
		p.decode(s)
	}
}

// echo republishes commands on the state topic, keeping the writer's
// header so the sequence travels end to end.
func (p *Platform) echo(ctx context.Context, base string, transform func(wire.Payload) wire.Payload) transport.Handler {
	return func(s transport.Sample) {
		msg, ok := p.decode(s)
		if !ok {
			return
		}
		if transform != nil {
			msg.Payload = transform(msg.Payload)
		}
		data, err := wire.Encode(msg)
		if err != nil {
			p.logger.Warn("echo failed", "topic", base, "error", err)
			return
		}
		if err := p.PublishRaw(ctx, wire.AttTopic(base), data); err != nil {
			p.logger.Warn("echo failed", "topic", base, "error", err)
		}
	}
}

func (p *Platform) countCommand(ctx context.Context) transport.Handler {
	return func(s transport.Sample) {
		if _, ok := p.decode(s); !ok {
			return
		}
		p.mu.Lock()
		p.counter++
		n := p.counter
		p.mu.Unlock()
		p.publishCounter(ctx, n)
	}
}

func (p *Platform) resetCounter(ctx context.Context, base string) transport.Handler {
	echo := p.echo(ctx, base, nil)
	return func(s transport.Sample) {
		msg, err := wire.Decode(s.Payload)
		if err == nil {
			if b, ok := msg.Payload.(*wire.BooleanPayload); ok && b.Value {
				p.mu.Lock()
				p.counter = 0
				p.mu.Unlock()
				p.publishCounter(ctx, 0)
			}
		}
		echo(s)
	}
}

func (p *Platform) publishCounter(ctx context.Context, n int) {
	if err := p.Publish(ctx, p.Base("boolean", "wo_counter"), &wire.NumberPayload{Value: float64(n)}); err != nil {
		p.logger.Warn("counter publish failed", "error", err)
	}
}

// Close stops the platform and releases the shared bus.
func (p *Platform) Close() error {
	err := p.session.Close()
	transport.ReleaseBus(p.name)
	return err
}
