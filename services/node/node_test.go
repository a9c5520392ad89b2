package node

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"proxnode-go/bus"
	"proxnode-go/errcode"
	"proxnode-go/types"
	"proxnode-go/x/logx"
)

type blockTask struct{ err error }

func (b blockTask) Run(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	<-ctx.Done()
	return nil
}

type fakeNet struct {
	blockTask
	mu    sync.Mutex
	up    bool
	lease types.Lease
	bound bool
}

func (f *fakeNet) IsLinkUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up
}

func (f *fakeNet) BoundAddress() (types.Lease, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lease, f.up && f.bound
}

func (f *fakeNet) set(up, bound bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up, f.bound = up, bound
	f.lease = types.Lease{Address: netip.MustParsePrefix("192.168.1.50/24")}
}

func TestWaitReady_NeedsLinkAndLease(t *testing.T) {
	fc := clockwork.NewFakeClock()
	core, logs := observer.New(zap.InfoLevel)
	b := bus.NewBus(8)
	net := &fakeNet{}
	n := New(Parts{Wifi: blockTask{}, Net: net, Sensor: blockTask{}}, Options{
		Clock: fc,
		Log:   logx.FromZap(zap.New(core)),
		Conn:  b.NewConnection("node"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)

	type result struct {
		l   types.Lease
		err error
	}
	ready := make(chan result, 1)
	go func() {
		l, err := n.WaitReady(ctx)
		ready <- result{l, err}
	}()

	// Link down: keeps polling.
	fc.BlockUntil(1)
	fc.Advance(500 * time.Millisecond)
	fc.BlockUntil(1)
	assert.Equal(t, 0, logs.FilterMessage("waiting to get IP address").Len())

	// Link up, no lease: still not ready.
	net.set(true, false)
	fc.Advance(500 * time.Millisecond)
	fc.BlockUntil(1)
	assert.Equal(t, 1, logs.FilterMessage("waiting to get IP address").Len())
	m, _ := b.Retained(TopicState)
	assert.Equal(t, LevelLinkUp, m.Payload.(types.NodeState).Level)
	select {
	case <-ready:
		t.Fatal("ready without a lease")
	default:
	}

	net.set(true, true)
	fc.Advance(500 * time.Millisecond)
	select {
	case r := <-ready:
		require.NoError(t, r.err)
		assert.Equal(t, "192.168.1.50/24", r.l.Address.String())
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return")
	}
	assert.Equal(t, 1, logs.FilterMessage("got IP").Len())

	cancel()
	require.NoError(t, n.Wait())
	m, _ = b.Retained(TopicState)
	assert.Equal(t, LevelStopped, m.Payload.(types.NodeState).Level)
}

func TestWait_FailingTaskCancelsGroup(t *testing.T) {
	fail := errcode.Wrap(errcode.SensorReadFailed, "sensor.read_range", errors.New("nack"))
	n := New(Parts{Wifi: blockTask{}, Net: &fakeNet{}, Sensor: blockTask{err: fail}, Heartbeat: blockTask{}},
		Options{Clock: clockwork.NewFakeClock(), Log: logx.Nop()})

	n.Start(context.Background())

	done := make(chan error, 1)
	go func() { done <- n.Wait() }()
	select {
	case err := <-done:
		assert.Equal(t, errcode.SensorReadFailed, errcode.Of(err))
	case <-time.After(time.Second):
		t.Fatal("group did not stop after a task failure")
	}

	_, err := n.WaitReady(context.Background())
	assert.Equal(t, errcode.NotReady, errcode.Of(err))
}

func TestWaitReady_BeforeStart(t *testing.T) {
	n := New(Parts{Net: &fakeNet{}}, Options{})
	_, err := n.WaitReady(context.Background())
	assert.Equal(t, errcode.NotReady, errcode.Of(err))
	assert.NoError(t, n.Wait())
}
