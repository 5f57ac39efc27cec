package reactor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panduza/panduza-go/internal/testplatform"
	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/transport"
	"github.com/panduza/panduza-go/pkg/wire"
)

func memoryConfig(name string) Config {
	cfg := DefaultConfig()
	cfg.Backend = transport.BackendMemory
	cfg.Address = name
	cfg.StructureTimeout = 2 * time.Second
	cfg.PrimeTimeout = time.Second
	cfg.ConfirmTimeout = 2 * time.Second
	return cfg
}

func connect(t *testing.T) (*Reactor, *testplatform.Platform) {
	t.Helper()
	ctx := context.Background()
	p, err := testplatform.Start(ctx, t.Name(), testplatform.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	r, err := Connect(ctx, memoryConfig(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, p
}

func TestConnectFindsEveryAttribute(t *testing.T) {
	r, p := connect(t)

	root := p.Root()
	keys := r.Structure().Keys()
	assert.Len(t, keys, r.Structure().Len())
	assert.Contains(t, keys, "pza/tester/boolean/rw")
	assert.Contains(t, keys, "pza/tester/number/rw")
	assert.NotEmpty(t, root.Children)

	for _, k := range keys {
		assert.True(t, r.FindAttribute(k).Found(), k)
	}
}

func TestStructureFlattening(t *testing.T) {
	r, _ := connect(t)

	meta, ok := r.FindAttribute("pza/tester/boolean/error").Metadata()
	require.True(t, ok)
	assert.Equal(t, "boolean", meta.Type)
	assert.Equal(t, wire.ModeReadWrite, meta.Mode)

	glob, ok := r.FindAttribute("pza/tester/*/rw").Metadata()
	require.True(t, ok)
	assert.Equal(t, "pza/tester/boolean/rw", glob.Topic, "lexicographic tie-break")
	assert.Len(t, r.Structure().FindAll("pza/tester/*/rw"), 4)
}

func TestBooleanSetConfirm(t *testing.T) {
	r, _ := connect(t)
	ctx := context.Background()

	b, err := r.FindAttribute("pza/tester/boolean/rw").TryIntoBoolean(ctx)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Set(ctx, true))
	v, ok := b.Get()
	assert.True(t, ok)
	assert.True(t, v)

	require.NoError(t, b.Set(ctx, false))
	v, ok = b.Get()
	assert.True(t, ok)
	assert.False(t, v)
}

func TestBooleanReadOnlyWait(t *testing.T) {
	r, p := connect(t)
	ctx := context.Background()

	b, err := r.FindAttribute("pza/tester/boolean/ro").TryIntoBoolean(ctx)
	require.NoError(t, err)
	defer b.Close()

	v, ok := b.Get()
	assert.True(t, ok, "primed from the retained value")
	assert.False(t, v)

	base := p.Base("boolean", "ro")
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = p.Publish(ctx, base, &wire.BooleanPayload{Value: false})
		_ = p.Publish(ctx, base, &wire.BooleanPayload{Value: true})
	}()
	require.NoError(t, b.WaitForValue(ctx, true, 5*time.Second))
	v, _ = b.Get()
	assert.True(t, v)
}

func TestNumberConfirmationTolerance(t *testing.T) {
	r, _ := connect(t)
	ctx := context.Background()

	n, err := r.FindAttribute("pza/tester/number/rw").TryIntoNumber(ctx)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Set(ctx, 1.23))
	v, ok := n.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.23+testplatform.NumberJitter, v, 1e-9)
}

func TestCounterViaShoot(t *testing.T) {
	r, _ := connect(t)
	ctx := context.Background()

	reset, err := r.FindAttribute("pza/tester/boolean/wo_counter_reset").TryIntoBoolean(ctx)
	require.NoError(t, err)
	defer reset.Close()
	wo, err := r.FindAttribute("pza/tester/boolean/wo_bool").TryIntoBoolean(ctx)
	require.NoError(t, err)
	defer wo.Close()
	counter, err := r.FindAttribute("pza/tester/boolean/wo_counter").TryIntoNumber(ctx)
	require.NoError(t, err)
	defer counter.Close()

	require.NoError(t, reset.Set(ctx, true))
	for _, v := range []bool{false, true, false, true} {
		require.NoError(t, wo.Shoot(ctx, v))
	}
	require.NoError(t, counter.WaitForValue(ctx, 4, 5*time.Second))
}

func TestPermissionBoundary(t *testing.T) {
	r, p := connect(t)
	ctx := context.Background()

	b, err := r.FindAttribute("pza/tester/boolean/ro").TryIntoBoolean(ctx)
	require.NoError(t, err)
	defer b.Close()

	assert.ErrorIs(t, b.Set(ctx, true), pzaerrors.ErrInvalidMode)

	var calls atomic.Int32
	b.AddCallback(func(context.Context, bool) error {
		calls.Add(1)
		return nil
	}, func(v bool) bool { return v })
	require.NoError(t, p.Publish(ctx, p.Base("boolean", "ro"), &wire.BooleanPayload{Value: true}))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	v, _ := b.Get()
	assert.True(t, v)
}

func TestTryIntoErrors(t *testing.T) {
	r, _ := connect(t)
	ctx := context.Background()

	_, err := r.FindAttribute("pza/tester/nothing/here").TryIntoBoolean(ctx)
	assert.ErrorIs(t, err, pzaerrors.ErrNotFound)

	_, err = r.FindAttribute("pza/tester/number/rw").TryIntoBoolean(ctx)
	require.ErrorIs(t, err, pzaerrors.ErrInvalidType)
	var typeErr *pzaerrors.InvalidTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "boolean", typeErr.Expected)
	assert.Equal(t, "number", typeErr.Found)
}

func TestHandlesShareCore(t *testing.T) {
	r, p := connect(t)
	ctx := context.Background()
	topic := wire.AttTopic(p.Base("string", "rw"))

	a, err := r.FindAttribute("pza/tester/string/rw").TryIntoString(ctx)
	require.NoError(t, err)
	b, err := r.FindAttribute("pza/tester/string/*w").TryIntoString(ctx)
	require.NoError(t, err)

	assert.Same(t, a.Core(), b.Core())
	assert.Equal(t, 1, p.Bus().SubscriberCount(topic))

	require.NoError(t, a.Set(ctx, "hello"))
	v, _ := b.Get()
	assert.Equal(t, "hello", v)

	before := r.OpenAttributes()
	require.NoError(t, a.Close())
	assert.Equal(t, before, r.OpenAttributes())
	require.NoError(t, b.Close())
	assert.Equal(t, before-1, r.OpenAttributes())
	assert.Equal(t, 0, p.Bus().SubscriberCount(topic))

	c, err := r.FindAttribute("pza/tester/string/rw").TryIntoString(ctx)
	require.NoError(t, err)
	defer c.Close()
	v, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, "hello", v, "a new core primes from the retained echo")
}

func TestWellKnownAttributes(t *testing.T) {
	r, p := connect(t)
	ctx := context.Background()

	status, err := r.NewStatusAttribute(ctx)
	require.NoError(t, err)
	defer status.Close()
	require.NoError(t, status.WaitForAllInstancesToBeRunning(ctx, time.Second))

	notes, err := r.NewNotificationAttribute(ctx)
	require.NoError(t, err)
	defer notes.Close()

	go func() {
		_ = p.SetStatus(ctx, wire.InstanceStatus{Instance: "tester", State: wire.StateError, ErrorString: "boom"})
		_ = p.Notify(ctx, wire.NotificationError, "tester", "boom")
	}()
	list, err := status.WaitForAtLeastOneInstanceToBeNotRunning(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "boom", list[0].ErrorString)

	n, err := notes.WaitForError(ctx, "tester", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "boom", n.Message)

	st, err := r.NewStructureAttribute(ctx)
	require.NoError(t, err)
	defer st.Close()
	assert.Contains(t, st.Flatten(), "pza/tester/bytes/rw")
}

func TestStructureUpdate(t *testing.T) {
	r, p := connect(t)
	ctx := context.Background()

	updated := r.Structure().Updated()
	version := r.Structure().Version()
	require.NoError(t, p.SetStructure(ctx, wire.Node{Children: []wire.Node{{
		Name: "psu",
		Kind: wire.NodeInstance,
		Children: []wire.Node{{
			Name: "voltage", Kind: wire.NodeAttribute, Type: "number", Mode: wire.ModeReadWrite,
		}},
	}}}))

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("structure not updated")
	}
	assert.Greater(t, r.Structure().Version(), version)
	assert.Equal(t, []string{"pza/psu/voltage"}, r.Structure().Keys())
	assert.False(t, r.FindAttribute("pza/tester/boolean/rw").Found())
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	p, err := testplatform.Start(ctx, t.Name(), testplatform.Options{Namespace: "lab"})
	require.NoError(t, err)
	defer p.Close()

	cfg := memoryConfig(t.Name())
	cfg.Namespace = "lab"
	r, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "lab/pza", r.Prefix())
	b, err := r.FindAttribute("lab/pza/tester/boolean/rw").TryIntoBoolean(ctx)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Set(ctx, true))
}

func TestConnectStructureTimeout(t *testing.T) {
	cfg := memoryConfig(t.Name())
	cfg.StructureTimeout = 50 * time.Millisecond
	_, err := Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, pzaerrors.ErrTimeout)
}

func TestConnectSessionError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityDisabled = true
	cfg.Backend = transport.BackendNATS
	cfg.Port = 1
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Connect(ctx, cfg)
	assert.ErrorIs(t, err, pzaerrors.ErrSession)
}

func TestConnectInvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.ErrorIs(t, err, pzaerrors.ErrConfig)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	p, err := testplatform.Start(ctx, t.Name(), testplatform.Options{})
	require.NoError(t, err)
	defer p.Close()

	reg := prometheus.NewRegistry()
	cfg := memoryConfig(t.Name())
	cfg.Registerer = reg
	r, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer r.Close()

	b, err := r.FindAttribute("pza/tester/boolean/rw").TryIntoBoolean(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, true))

	count, err := testutil.GatherAndCount(reg, "panduza_attribute_publishes_total", "panduza_attribute_active")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, b.Close())
}

func TestCloseFailsWaiters(t *testing.T) {
	r, _ := connect(t)
	ctx := context.Background()

	b, err := r.FindAttribute("pza/tester/boolean/ro").TryIntoBoolean(ctx)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- b.WaitForValue(ctx, true, 0) }()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, pzaerrors.ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released on close")
	}

	_, err = r.FindAttribute("pza/tester/boolean/rw").TryIntoBoolean(ctx)
	assert.ErrorIs(t, err, pzaerrors.ErrSession)
}
