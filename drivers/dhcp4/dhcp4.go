//go:build linux

// Package dhcp4 is the Linux netstack.Driver: it watches the interface's
// running flag, acquires an IPv4 lease with nclient4, installs the address
// and re-requests at half the lease time.
//
// Only the address and netmask are installed. Default route and resolver
// configuration are left to the host.
package dhcp4

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"
	"github.com/jonboulle/clockwork"

	"proxnode-go/errcode"
	"proxnode-go/types"
	"proxnode-go/x/logx"
	"proxnode-go/x/timex"
)

type Options struct {
	Poll         time.Duration // link poll, default 1s
	RequestLimit time.Duration // per DORA exchange, default 10s
	RetryDelay   time.Duration // after a failed request, default 5s
	Clock        clockwork.Clock
	Log          logx.Logger
}

type Driver struct {
	ifname string
	opts   Options
	clk    clockwork.Clock
	log    logx.Logger

	// Seams for tests.
	linkUp  func(ifname string) (bool, error)
	request func(ctx context.Context, ifname string) (types.Lease, error)
	install func(ifname string, p netip.Prefix) error

	mu      sync.Mutex
	up      bool
	lease   types.Lease
	bound   bool
	renewAt time.Time
}

func New(ifname string, opts Options) *Driver {
	if opts.Poll <= 0 {
		opts.Poll = time.Second
	}
	if opts.RequestLimit <= 0 {
		opts.RequestLimit = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	return &Driver{
		ifname:  ifname,
		opts:    opts,
		clk:     opts.Clock,
		log:     opts.Log.Named("dhcp4"),
		linkUp:  interfaceRunning,
		request: requestLease,
		install: installAddr,
	}
}

func (d *Driver) IsLinkUp() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.up
}

func (d *Driver) ConfigV4() (types.Lease, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.bound || d.expiredLocked() {
		return types.Lease{}, false
	}
	return d.lease, true
}

func (d *Driver) expiredLocked() bool {
	return d.bound && !d.clk.Now().Before(d.lease.AcquiredAt.Add(d.lease.Duration))
}

// Run polls the link and keeps a lease while it is up. It returns nil when
// ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		delay := d.step(ctx)
		if timex.Sleep(ctx, d.clk, delay) != nil {
			return nil
		}
	}
}

// step runs one pass and returns how long to wait before the next.
func (d *Driver) step(ctx context.Context) time.Duration {
	up, err := d.linkUp(d.ifname)
	if err != nil {
		d.log.Warnw("link probe failed", "ifname", d.ifname, "err", err)
	}

	d.mu.Lock()
	d.up = up
	lost := !up && d.bound
	expired := up && d.expiredLocked()
	if lost || expired {
		d.bound, d.lease = false, types.Lease{}
	}
	need := up && (!d.bound || !d.clk.Now().Before(d.renewAt))
	d.mu.Unlock()

	if lost {
		d.log.Warnw("link lost, lease dropped", "ifname", d.ifname)
	}
	if expired {
		d.log.Warnw("lease expired without renewal", "ifname", d.ifname)
	}
	if !need {
		return d.opts.Poll
	}

	rctx, cancel := context.WithTimeout(ctx, d.opts.RequestLimit)
	l, err := d.request(rctx, d.ifname)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			d.log.Warnw("dhcp request failed", "ifname", d.ifname, "err", errcode.Wrap(errcode.LeaseFailed, "dhcp4.request", err))
		}
		return d.opts.RetryDelay
	}
	if err := d.install(d.ifname, l.Address); err != nil {
		d.log.Errorw("address install failed", "ifname", d.ifname, "address", l.Address.String(), "err", err)
		return d.opts.RetryDelay
	}

	l.AcquiredAt = d.clk.Now()
	d.mu.Lock()
	d.lease, d.bound = l, true
	d.renewAt = l.AcquiredAt.Add(l.Duration / 2)
	d.mu.Unlock()
	d.log.Infow("lease acquired", "address", l.Address.String(), "gateway", l.Gateway.String(), "lease", l.Duration)
	return d.opts.Poll
}

// -----------------------------------------------------------------------------
// system plumbing
// -----------------------------------------------------------------------------

func interfaceRunning(ifname string) (bool, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return false, err
	}
	return ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagRunning != 0, nil
}

func requestLease(ctx context.Context, ifname string) (types.Lease, error) {
	c, err := nclient4.New(ifname)
	if err != nil {
		return types.Lease{}, fmt.Errorf("dhcp client on %s: %w", ifname, err)
	}
	defer c.Close()

	l, err := c.Request(ctx)
	if err != nil {
		return types.Lease{}, err
	}
	return leaseFromACK(l.ACK)
}

var errNoAddress = errors.New("ack carries no address")

// leaseFromACK converts a DHCPACK. Missing lease time defaults to one hour.
func leaseFromACK(ack *dhcpv4.DHCPv4) (types.Lease, error) {
	if ack == nil {
		return types.Lease{}, errNoAddress
	}
	addr, ok := netip.AddrFromSlice(ack.YourIPAddr.To4())
	if !ok || addr.IsUnspecified() {
		return types.Lease{}, errNoAddress
	}
	bits := 32
	if m := ack.SubnetMask(); m != nil {
		if ones, size := m.Size(); size == 32 {
			bits = ones
		}
	}
	l := types.Lease{
		Address:  netip.PrefixFrom(addr, bits),
		Duration: ack.IPAddressLeaseTime(time.Hour),
	}
	if rs := ack.Router(); len(rs) > 0 {
		l.Gateway, _ = netip.AddrFromSlice(rs[0].To4())
	}
	for _, ip := range ack.DNS() {
		if a, ok := netip.AddrFromSlice(ip.To4()); ok {
			l.DNS = append(l.DNS, a)
		}
	}
	return l, nil
}
