//go:build linux

package dhcp4

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxnode-go/types"
	"proxnode-go/x/logx"
)

type fakeHost struct {
	mu        sync.Mutex
	up        bool
	reqErr    error
	requests  int
	installed []netip.Prefix
}

func (h *fakeHost) link(string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.up, nil
}

func (h *fakeHost) request(context.Context, string) (types.Lease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests++
	if h.reqErr != nil {
		return types.Lease{}, h.reqErr
	}
	return types.Lease{
		Address:  netip.MustParsePrefix("192.168.1.77/24"),
		Gateway:  netip.MustParseAddr("192.168.1.1"),
		Duration: time.Hour,
	}, nil
}

func (h *fakeHost) install(_ string, p netip.Prefix) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installed = append(h.installed, p)
	return nil
}

func newTestDriver(fc clockwork.Clock, h *fakeHost) *Driver {
	d := New("wlan0", Options{Clock: fc, Log: logx.Nop()})
	d.linkUp, d.request, d.install = h.link, h.request, h.install
	return d
}

func TestStep_LeaseLifecycle(t *testing.T) {
	fc := clockwork.NewFakeClock()
	h := &fakeHost{}
	d := newTestDriver(fc, h)
	ctx := context.Background()

	// Link down: nothing requested.
	assert.Equal(t, time.Second, d.step(ctx))
	assert.False(t, d.IsLinkUp())
	assert.Zero(t, h.requests)

	// Link up: request, install, bind.
	h.up = true
	assert.Equal(t, time.Second, d.step(ctx))
	l, ok := d.ConfigV4()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.77/24", l.Address.String())
	assert.Equal(t, fc.Now(), l.AcquiredAt)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("192.168.1.77/24")}, h.installed)

	// Before T/2 no new request; at T/2 re-request.
	fc.Advance(29 * time.Minute)
	d.step(ctx)
	assert.Equal(t, 1, h.requests)
	fc.Advance(time.Minute)
	d.step(ctx)
	assert.Equal(t, 2, h.requests)

	// Link loss clears the lease.
	h.up = false
	d.step(ctx)
	_, ok = d.ConfigV4()
	assert.False(t, ok)
	assert.False(t, d.IsLinkUp())
}

func TestStep_RequestFailureBacksOff(t *testing.T) {
	fc := clockwork.NewFakeClock()
	h := &fakeHost{up: true, reqErr: errors.New("no offer")}
	d := newTestDriver(fc, h)

	assert.Equal(t, 5*time.Second, d.step(context.Background()))
	_, ok := d.ConfigV4()
	assert.False(t, ok)
	assert.True(t, d.IsLinkUp(), "link up without a lease is a valid state")
}

func TestStep_FailedRenewalsExpireLease(t *testing.T) {
	fc := clockwork.NewFakeClock()
	h := &fakeHost{up: true}
	d := newTestDriver(fc, h)
	ctx := context.Background()

	d.step(ctx)
	_, ok := d.ConfigV4()
	require.True(t, ok)

	// Renewals from T/2 onwards all fail; the lease stands until T.
	h.mu.Lock()
	h.reqErr = errors.New("no ack")
	h.mu.Unlock()
	fc.Advance(30 * time.Minute)
	assert.Equal(t, 5*time.Second, d.step(ctx))
	_, ok = d.ConfigV4()
	assert.True(t, ok)

	fc.Advance(30 * time.Minute)
	_, ok = d.ConfigV4()
	assert.False(t, ok, "expired lease reported as bound")

	d.step(ctx)
	d.mu.Lock()
	assert.False(t, d.bound)
	d.mu.Unlock()
	assert.True(t, d.IsLinkUp())
	assert.Equal(t, 3, h.requests)
}

func TestRun_StopsOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := newTestDriver(fc, &fakeHost{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	fc.BlockUntil(1)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestLeaseFromACK(t *testing.T) {
	ack, err := dhcpv4.New(
		dhcpv4.WithYourIP(net.IPv4(10, 1, 2, 3)),
		dhcpv4.WithNetmask(net.CIDRMask(20, 32)),
		dhcpv4.WithRouter(net.IPv4(10, 1, 0, 1)),
		dhcpv4.WithDNS(net.IPv4(1, 1, 1, 1), net.IPv4(9, 9, 9, 9)),
		dhcpv4.WithLeaseTime(7200),
	)
	require.NoError(t, err)

	l, err := leaseFromACK(ack)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3/20", l.Address.String())
	assert.Equal(t, "10.1.0.1", l.Gateway.String())
	assert.Len(t, l.DNS, 2)
	assert.Equal(t, 2*time.Hour, l.Duration)

	empty, err := dhcpv4.New()
	require.NoError(t, err)
	_, err = leaseFromACK(empty)
	assert.ErrorIs(t, err, errNoAddress)
}
