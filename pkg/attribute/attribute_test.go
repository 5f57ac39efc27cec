package attribute

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/router"
	"github.com/panduza/panduza-go/pkg/transport"
	"github.com/panduza/panduza-go/pkg/wire"
)

type fixture struct {
	bus    *transport.Bus
	client *transport.MemorySession
	device *transport.MemorySession
	router *router.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := transport.NewBus()
	f := &fixture{
		bus:    bus,
		client: transport.NewMemorySession(bus, nil),
		device: transport.NewMemorySession(bus, nil),
	}
	f.router = router.New(f.client, router.Config{})
	t.Cleanup(func() {
		f.router.Close()
		f.client.Close()
		f.device.Close()
	})
	return f
}

func frame(t *testing.T, p wire.Payload) []byte {
	t.Helper()
	data, err := wire.Encode(wire.NewMessage(99, 1, p))
	require.NoError(t, err)
	return data
}

func (f *fixture) publish(t *testing.T, base string, p wire.Payload) {
	t.Helper()
	f.publishRaw(t, wire.AttTopic(base), frame(t, p))
}

func (f *fixture) publishRaw(t *testing.T, topic string, data []byte) {
	t.Helper()
	pub, err := f.device.DeclarePublisher(context.Background(), topic, transport.PublisherOptions{Retain: true})
	require.NoError(t, err)
	require.NoError(t, pub.Put(context.Background(), data))
}

// echo republishes every command of base on its state topic, passed through
// transform when non-nil.
func (f *fixture) echo(t *testing.T, base string, transform func(wire.Payload) wire.Payload) {
	t.Helper()
	ctx := context.Background()
	pub, err := f.device.DeclarePublisher(ctx, wire.AttTopic(base), transport.PublisherOptions{Retain: true})
	require.NoError(t, err)
	_, err = f.device.Subscribe(ctx, wire.CmdTopic(base), func(s transport.Sample) {
		msg, err := wire.Decode(s.Payload)
		if err != nil {
			return
		}
		if transform != nil {
			msg.Payload = transform(msg.Payload)
		}
		data, err := wire.Encode(msg)
		if err != nil {
			return
		}
		_ = pub.Put(ctx, data)
	})
	require.NoError(t, err)
}

func open[T any](t *testing.T, f *fixture, codec Codec[T], base string, mode wire.Mode, opts ...func(*Options)) *Handle[T] {
	t.Helper()
	o := Options{
		Router:         f.router,
		Topic:          base,
		Mode:           mode,
		PrimeTimeout:   time.Second,
		ConfirmTimeout: time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	core, err := Open(context.Background(), codec, o)
	require.NoError(t, err)
	h, ok := core.Acquire()
	require.True(t, ok)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestBooleanSetConfirm(t *testing.T) {
	f := newFixture(t)
	f.echo(t, "pza/tester/boolean/rw", nil)
	b := NewBoolean(open(t, f, Codec[bool](BooleanCodec{}), "pza/tester/boolean/rw", wire.ModeReadWrite))
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, true))
	v, ok := b.Get()
	assert.True(t, ok)
	assert.True(t, v)

	require.NoError(t, b.Set(ctx, false))
	v, ok = b.Get()
	assert.True(t, ok)
	assert.False(t, v)

	require.NoError(t, b.Toggle(ctx))
	v, _ = b.Get()
	assert.True(t, v)
}

func TestBooleanWaitForValue(t *testing.T) {
	f := newFixture(t)
	b := NewBoolean(open(t, f, Codec[bool](BooleanCodec{}), "pza/tester/boolean/ro", wire.ModeReadOnly))

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.publish(t, "pza/tester/boolean/ro", &wire.BooleanPayload{Value: false})
		f.publish(t, "pza/tester/boolean/ro", &wire.BooleanPayload{Value: true})
	}()

	require.NoError(t, b.WaitForValue(context.Background(), true, 5*time.Second))
	v, ok := b.Get()
	assert.True(t, ok)
	assert.True(t, v)
}

func TestNumberConfirmTolerance(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/number/rw"
	f.echo(t, base, func(p wire.Payload) wire.Payload {
		n := p.(*wire.NumberPayload)
		return &wire.NumberPayload{Value: n.Value + 0.000001, Decimals: 2}
	})
	n := NewNumber(open(t, f, Codec[wire.NumberPayload](NumberCodec{}), base, wire.ModeReadWrite))

	require.NoError(t, n.Set(context.Background(), 1.23))
	v, ok := n.Get()
	assert.True(t, ok)
	assert.InDelta(t, 1.230001, v, 1e-9)
	assert.Equal(t, uint8(2), n.Decimals())
}

func TestNumberMetadataAndWhitelist(t *testing.T) {
	f := newFixture(t)
	base := "pza/psu/voltage"
	f.publish(t, base, &wire.NumberPayload{
		Value:     5,
		Decimals:  1,
		Range:     &wire.Range{Min: 0, Max: 30},
		Whitelist: []float64{3.3, 5, 12},
	})
	f.echo(t, base, nil)
	n := NewNumber(open(t, f, Codec[wire.NumberPayload](NumberCodec{}), base, wire.ModeReadWrite))

	meta, ok := n.Metadata()
	require.True(t, ok)
	assert.Equal(t, 30.0, meta.Range.Max)

	// Advisory by default.
	require.NoError(t, n.Set(context.Background(), 7))

	n.EnforceWhitelist(true)
	err := n.Set(context.Background(), 9)
	assert.ErrorIs(t, err, pzaerrors.ErrRejected)
	require.NoError(t, n.Set(context.Background(), 12))

	// Echoes carry no metadata; the announced limits stay in force.
	meta, ok = n.Metadata()
	require.True(t, ok)
	assert.Equal(t, []float64{3.3, 5, 12}, meta.Whitelist)
	assert.InDelta(t, 12.0, meta.Value, 1e-9)
	assert.ErrorIs(t, n.Set(context.Background(), 9), pzaerrors.ErrRejected)
	assert.ErrorIs(t, n.Shoot(context.Background(), 31), pzaerrors.ErrRejected)
}

func TestNumberMetadataSurvivesBareFrames(t *testing.T) {
	f := newFixture(t)
	base := "pza/psu/current"
	f.publish(t, base, &wire.NumberPayload{
		Value:     1,
		Decimals:  2,
		Unit:      &wire.Unit{Unit: wire.UnitAmpere},
		Whitelist: []float64{0.5, 1},
	})
	n := NewNumber(open(t, f, Codec[wire.NumberPayload](NumberCodec{}), base, wire.ModeReadOnly))

	f.publish(t, base, &wire.NumberPayload{Value: 0.5, Decimals: 2})
	_, err := n.WaitFor(context.Background(), func(v float64) bool { return v == 0.5 }, time.Second)
	require.NoError(t, err)

	meta, ok := n.Metadata()
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 1}, meta.Whitelist)
	require.NotNil(t, n.Unit())
	assert.Equal(t, wire.UnitAmpere, n.Unit().Unit)

	f.publish(t, base, &wire.NumberPayload{Value: 1, Decimals: 2, Whitelist: []float64{1, 2}})
	_, err = n.WaitFor(context.Background(), func(v float64) bool { return v == 1 }, time.Second)
	require.NoError(t, err)
	meta, _ = n.Metadata()
	assert.Equal(t, []float64{1, 2}, meta.Whitelist, "a new announcement replaces the old one")
}

func TestStringWhitelist(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/string/rw"
	f.echo(t, base, nil)
	s := NewString(open(t, f, Codec[string](StringCodec{}), base, wire.ModeReadWrite))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "anything"))
	s.EnforceWhitelist(true, "on", "off")
	assert.ErrorIs(t, s.Shoot(ctx, "anything"), pzaerrors.ErrRejected)
	require.NoError(t, s.Set(ctx, "on"))
	require.NoError(t, s.WaitForValue(ctx, "on", time.Second))
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/ro"
	b := NewBoolean(open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeReadOnly))
	ctx := context.Background()

	err := b.Set(ctx, true)
	assert.ErrorIs(t, err, pzaerrors.ErrInvalidMode)
	assert.ErrorIs(t, b.Shoot(ctx, true), pzaerrors.ErrInvalidMode)

	got := make(chan bool, 1)
	b.AddCallback(func(_ context.Context, v bool) error {
		got <- v
		return nil
	}, nil)
	f.publish(t, base, &wire.BooleanPayload{Value: true})

	select {
	case v := <-got:
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
	v, ok := b.Get()
	assert.True(t, ok)
	assert.True(t, v)
}

func TestSetTimeout(t *testing.T) {
	f := newFixture(t)
	h := open(t, f, Codec[bool](BooleanCodec{}), "pza/mute/rw", wire.ModeReadWrite, func(o *Options) {
		o.ConfirmTimeout = 50 * time.Millisecond
	})
	err := h.Set(context.Background(), true)
	assert.ErrorIs(t, err, pzaerrors.ErrTimeout)
	_, ok := h.Get()
	assert.False(t, ok, "local set must not fill the cache")
}

func TestSetCancelled(t *testing.T) {
	f := newFixture(t)
	h := open(t, f, Codec[bool](BooleanCodec{}), "pza/mute/rw", wire.ModeReadWrite)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := h.Set(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, pzaerrors.ErrTimeout)
}

func TestWriteOnlySetAndShoot(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/wo"
	cmds, _ := collectCmds(t, f, base)
	h := open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeWriteOnly)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, true))
	require.NoError(t, h.Shoot(ctx, false))
	require.NoError(t, h.Shoot(ctx, true))

	var got []bool
	for range 3 {
		select {
		case m := <-cmds:
			got = append(got, m.Payload.(*wire.BooleanPayload).Value)
		case <-time.After(time.Second):
			t.Fatal("command not published")
		}
	}
	assert.Equal(t, []bool{true, false, true}, got)
}

func collectCmds(t *testing.T, f *fixture, base string) (<-chan *wire.Message, transport.Subscription) {
	t.Helper()
	ch := make(chan *wire.Message, 16)
	sub, err := f.device.Subscribe(context.Background(), wire.CmdTopic(base), func(s transport.Sample) {
		if m, err := wire.Decode(s.Payload); err == nil {
			ch <- m
		}
	})
	require.NoError(t, err)
	return ch, sub
}

func TestSequenceAndSourcePropagated(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/string/wo"
	cmds, _ := collectCmds(t, f, base)
	seq := NewSequence()
	h := open(t, f, Codec[string](StringCodec{}), base, wire.ModeWriteOnly, func(o *Options) {
		o.Source = 42
		o.Sequence = seq
	})
	require.NoError(t, h.Shoot(context.Background(), "a"))
	require.NoError(t, h.Shoot(context.Background(), "b"))

	first := <-cmds
	second := <-cmds
	assert.Equal(t, uint16(42), first.Header.Source)
	assert.Equal(t, first.Header.Sequence+1, second.Header.Sequence)
}

func TestCallbacks(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/number/ro"
	n := NewNumber(open(t, f, Codec[wire.NumberPayload](NumberCodec{}), base, wire.ModeReadOnly))
	ctx := context.Background()

	var mu sync.Mutex
	var all, big []float64
	idAll := n.AddCallback(func(_ context.Context, v float64) error {
		mu.Lock()
		all = append(all, v)
		mu.Unlock()
		return nil
	}, nil)
	idBig := n.AddCallback(func(_ context.Context, v float64) error {
		mu.Lock()
		big = append(big, v)
		mu.Unlock()
		return errors.New("ignored")
	}, func(v float64) bool { return v > 10 })
	assert.Greater(t, uint64(idBig), uint64(idAll))

	for _, v := range []float64{1, 20, 3} {
		f.publish(t, base, &wire.NumberPayload{Value: v})
	}
	_, err := n.WaitFor(ctx, func(v float64) bool { return v == 3 }, time.Second)
	require.NoError(t, err)

	assert.True(t, n.RemoveCallback(idAll))
	assert.False(t, n.RemoveCallback(idAll))

	f.publish(t, base, &wire.NumberPayload{Value: 50})
	f.publish(t, base, &wire.NumberPayload{Value: 4})
	_, err = n.WaitFor(ctx, func(v float64) bool { return v == 4 }, time.Second)
	require.NoError(t, err)
	// Callbacks of a frame complete before the next frame is stored.
	f.publish(t, base, &wire.NumberPayload{Value: 5})
	_, err = n.WaitFor(ctx, func(v float64) bool { return v == 5 }, time.Second)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{1, 20, 3}, all)
	assert.Equal(t, []float64{20, 50}, big)

	n.ClearCallbacks()
	assert.Equal(t, 0, n.Core().CallbackCount())
}

func TestCallbacksJoinedPerFrame(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/ro"
	h := open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeReadOnly)

	var running, maxRunning, calls atomic.Int32
	slow := func(context.Context, bool) error {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		calls.Add(1)
		return nil
	}
	h.AddCallback(slow, nil)
	h.AddCallback(slow, nil)

	f.publish(t, base, &wire.BooleanPayload{Value: true})
	f.publish(t, base, &wire.BooleanPayload{Value: false})

	require.Eventually(t, func() bool { return calls.Load() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), maxRunning.Load(), "callbacks of one frame run together, frames never overlap")
}

func TestInputQueue(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/ro"
	h := open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeReadOnly)
	h.EnableInputQueue(true)

	seq := []bool{true, false, true, true}
	for _, v := range seq {
		f.publish(t, base, &wire.BooleanPayload{Value: v})
	}
	require.Eventually(t, func() bool { return h.QueueLen() == len(seq) }, time.Second, 5*time.Millisecond)

	h.EnableInputQueue(false)
	assert.Equal(t, len(seq), h.QueueLen(), "disabling keeps history")
	for _, want := range seq {
		v, ok := h.Pop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok := h.Pop()
	assert.False(t, ok)

	last, _ := h.Get()
	assert.True(t, last)
}

func TestDecodeErrorsDropped(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/ro"
	h := open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeReadOnly)

	f.publish(t, base, &wire.BooleanPayload{Value: true})
	_, err := h.WaitFor(context.Background(), func(v bool) bool { return v }, time.Second)
	require.NoError(t, err)

	f.publishRaw(t, wire.AttTopic(base), nil)
	f.publishRaw(t, wire.AttTopic(base), []byte{0xff, 0x00})
	f.publish(t, base, &wire.StringPayload{Value: "wrong kind"})

	changed := h.Changed()
	f.publish(t, base, &wire.BooleanPayload{Value: false})
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("inbound task stopped after bad frames")
	}
	v, _ := h.Get()
	assert.False(t, v)
}

func TestPrimeFromRetained(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/string/ro"
	f.bus.Retain(wire.AttTopic(base), frame(t, &wire.StringPayload{Value: "primed"}))

	h := open(t, f, Codec[string](StringCodec{}), base, wire.ModeReadOnly)
	v, ok := h.Get()
	assert.True(t, ok)
	assert.Equal(t, "primed", v)
}

func TestWriteOnlySkipsPrime(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/string/wo"
	f.bus.Retain(wire.AttTopic(base), frame(t, &wire.StringPayload{Value: "stale"}))

	h := open(t, f, Codec[string](StringCodec{}), base, wire.ModeWriteOnly)
	_, ok := h.Get()
	assert.False(t, ok)
}

func TestHandlesShareCore(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/bytes/ro"
	core, err := Open(context.Background(), Codec[[]byte](BytesCodec{}), Options{Router: f.router, Topic: base, Mode: wire.ModeReadOnly})
	require.NoError(t, err)

	h1, _ := core.Acquire()
	h2, _ := h1.Clone()

	calls := make(chan []byte, 4)
	h1.AddCallback(func(_ context.Context, v []byte) error {
		calls <- v
		return nil
	}, nil)
	require.NoError(t, h1.Close())
	require.NoError(t, h1.Close())

	f.publish(t, base, &wire.BytesPayload{Data: []byte{1, 2}})
	require.NoError(t, NewBytes(h2).WaitForValue(context.Background(), []byte{1, 2}, time.Second))
	assert.Empty(t, calls, "callbacks of a closed handle are removed")
	assert.Equal(t, 1, f.bus.SubscriberCount(wire.AttTopic(base)))

	assert.ErrorIs(t, h1.Shoot(context.Background(), nil), pzaerrors.ErrChannelClosed)

	require.NoError(t, h2.Close())
	select {
	case <-core.Done():
	case <-time.After(time.Second):
		t.Fatal("inbound task still running")
	}
	assert.Equal(t, 0, f.bus.SubscriberCount(wire.AttTopic(base)))
	_, ok := core.Acquire()
	assert.False(t, ok)
}

// taggedFrames puts CBOR frames behind a one-byte tag, standing in for
// another envelope encoding.
type taggedFrames struct{}

const frameTag = 0x7a

func (taggedFrames) Encode(m *wire.Message) ([]byte, error) {
	data, err := wire.CBORFrames.Encode(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{frameTag}, data...), nil
}

func (taggedFrames) Decode(data []byte) (*wire.Message, error) {
	if len(data) == 0 || data[0] != frameTag {
		return nil, errors.New("untagged frame")
	}
	return wire.CBORFrames.Decode(data[1:])
}

func TestCustomFrameCodec(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/rw"
	tagged, err := taggedFrames{}.Encode(wire.NewMessage(99, 1, &wire.BooleanPayload{Value: true}))
	require.NoError(t, err)
	f.publishRaw(t, wire.AttTopic(base), tagged)

	cmds := make(chan []byte, 4)
	_, err = f.device.Subscribe(context.Background(), wire.CmdTopic(base), func(s transport.Sample) {
		cmds <- s.Payload
	})
	require.NoError(t, err)

	h := open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeReadWrite, func(o *Options) {
		o.Frames = taggedFrames{}
	})
	v, ok := h.Get()
	require.True(t, ok, "tagged retained frame not decoded")
	assert.True(t, v)

	// A plain CBOR frame is foreign to this codec and dropped.
	f.publish(t, base, &wire.BooleanPayload{Value: false})
	_, err = h.WaitFor(context.Background(), func(v bool) bool { return !v }, 100*time.Millisecond)
	assert.ErrorIs(t, err, pzaerrors.ErrTimeout)

	require.NoError(t, h.Shoot(context.Background(), false))
	select {
	case data := <-cmds:
		msg, err := taggedFrames{}.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, &wire.BooleanPayload{Value: false}, msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("command not published")
	}
}

func TestWaitForFrameDuringCacheCheck(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/boolean/ro"
	f.publish(t, base, &wire.BooleanPayload{Value: false})
	h := open(t, f, Codec[bool](BooleanCodec{}), base, wire.ModeReadOnly)
	_, ok := h.Get()
	require.True(t, ok)

	// The matching frame is published while the cached value is being
	// checked; it must reach the waiter.
	var first atomic.Bool
	v, err := h.WaitFor(context.Background(), func(v bool) bool {
		if first.CompareAndSwap(false, true) {
			f.publish(t, base, &wire.BooleanPayload{Value: true})
			time.Sleep(20 * time.Millisecond)
		}
		return v
	}, time.Second)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestWaitForChannelClosed(t *testing.T) {
	f := newFixture(t)
	core, err := Open(context.Background(), Codec[bool](BooleanCodec{}), Options{Router: f.router, Topic: "pza/x", Mode: wire.ModeReadOnly})
	require.NoError(t, err)
	h, _ := core.Acquire()

	errc := make(chan error, 1)
	go func() {
		_, err := core.WaitFor(context.Background(), func(bool) bool { return true }, 0)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, pzaerrors.ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}

func TestWaitForTimeout(t *testing.T) {
	f := newFixture(t)
	h := open(t, f, Codec[bool](BooleanCodec{}), "pza/x", wire.ModeReadOnly)
	_, err := h.WaitFor(context.Background(), func(v bool) bool { return v }, 30*time.Millisecond)
	assert.ErrorIs(t, err, pzaerrors.ErrTimeout)
}

func TestStatusWaits(t *testing.T) {
	f := newFixture(t)
	base := "pza/_/status"
	s := NewStatus(open(t, f, Codec[[]wire.InstanceStatus](StatusCodec{}), base, wire.ModeReadOnly))
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, nil), pzaerrors.ErrInvalidMode)

	f.publish(t, base, &wire.StatusPayload{})
	err := s.WaitForAllInstancesToBeRunning(ctx, 50*time.Millisecond)
	assert.ErrorIs(t, err, pzaerrors.ErrTimeout, "an empty list is not all running")

	go f.publish(t, base, &wire.StatusPayload{Instances: []wire.InstanceStatus{
		{Instance: "tester", State: wire.StateRunning},
		{Instance: "psu", State: wire.StateRunning},
	}})
	require.NoError(t, s.WaitForAllInstancesToBeRunning(ctx, time.Second))

	go f.publish(t, base, &wire.StatusPayload{Instances: []wire.InstanceStatus{
		{Instance: "tester", State: wire.StateRunning},
		{Instance: "psu", State: wire.StateError, ErrorString: "overcurrent"},
	}})
	list, err := s.WaitForAtLeastOneInstanceToBeNotRunning(ctx, time.Second)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	psu, ok := s.Instance("psu")
	require.True(t, ok)
	assert.Equal(t, "overcurrent", psu.ErrorString)
}

func TestNotification(t *testing.T) {
	f := newFixture(t)
	base := "pza/_/notifications"
	n := NewNotification(open(t, f, Codec[wire.NotificationPayload](NotificationCodec{}), base, wire.ModeReadOnly))

	go func() {
		f.publish(t, base, &wire.NotificationPayload{Type: wire.NotificationAlert, Source: "psu", Message: "hot"})
		f.publish(t, base, &wire.NotificationPayload{Type: wire.NotificationError, Source: "psu", Message: "dead"})
	}()
	p, err := n.WaitForError(context.Background(), "psu", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "dead", p.Message)

	seq, ok := n.Sequence()
	assert.True(t, ok)
	assert.Equal(t, uint16(1), seq)
}

func TestStructureAttribute(t *testing.T) {
	f := newFixture(t)
	base := "pza/_/structure"
	s := NewStructure(open(t, f, Codec[wire.Node](StructureCodec{}), base, wire.ModeReadOnly), "pza")
	assert.Nil(t, s.Flatten())

	f.publish(t, base, &wire.StructurePayload{Root: wire.Node{
		Kind: wire.NodeInstance,
		Children: []wire.Node{{
			Name: "tester",
			Kind: wire.NodeInstance,
			Children: []wire.Node{{
				Name:     "boolean",
				Kind:     wire.NodeClass,
				Children: []wire.Node{{Name: "error", Kind: wire.NodeAttribute, Type: "boolean", Mode: wire.ModeReadWrite}},
			}},
		}},
	}})
	_, err := s.WaitFor(context.Background(), func(wire.Node) bool { return true }, time.Second)
	require.NoError(t, err)

	meta, ok := s.Flatten()["pza/tester/boolean/error"]
	require.True(t, ok)
	assert.Equal(t, wire.ModeReadWrite, meta.Mode)
}

func TestOverflowKeepsNewest(t *testing.T) {
	f := newFixture(t)
	base := "pza/tester/number/ro"
	h := open(t, f, Codec[wire.NumberPayload](NumberCodec{}), base, wire.ModeReadOnly, func(o *Options) {
		o.Capacity = 2
	})
	block := make(chan struct{})
	h.AddCallback(func(context.Context, wire.NumberPayload) error {
		<-block
		return nil
	}, nil)

	for i := range 10 {
		f.publish(t, base, &wire.NumberPayload{Value: float64(i)})
	}
	close(block)

	_, err := h.WaitFor(context.Background(), func(p wire.NumberPayload) bool { return p.Value == 9 }, time.Second)
	require.NoError(t, err)
}
