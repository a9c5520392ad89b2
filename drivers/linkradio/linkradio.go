// Package linkradio adapts a TinyGo netlink co-processor (the radio plus its
// on-chip IP stack) to the wifi.Radio and netstack.Driver contracts.
package linkradio

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"tinygo.org/x/drivers/netlink"

	"proxnode-go/errcode"
	"proxnode-go/types"
)

// Link is the part of netlink.Netlinker the radio uses.
type Link interface {
	NetConnect(params *netlink.ConnectParams) error
	NetDisconnect()
	NetNotify(cb func(netlink.Event))
}

// Addresser reports the address the co-processor's DHCP client bound.
type Addresser interface {
	Addr() (netip.Addr, error)
}

type Options struct {
	ConnectTimeout  time.Duration
	WatchdogTimeout time.Duration
}

type Radio struct {
	link Link
	addr Addresser
	opts Options

	mu      sync.Mutex
	state   types.RadioState
	started bool
	linkUp  bool
	params  netlink.ConnectParams
	since   time.Time
	down    chan struct{}
}

func New(link Link, addr Addresser, opts Options) *Radio {
	return &Radio{
		link:  link,
		addr:  addr,
		opts:  opts,
		state: types.RadioStopped,
		down:  make(chan struct{}, 1),
	}
}

func (r *Radio) Capabilities() string { return "netlink sta, dhcp offload" }

func (r *Radio) State() types.RadioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Radio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, nil
}

func (r *Radio) SetConfiguration(c types.Credential) error {
	if c.SSID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "linkradio.configure", Msg: "empty ssid"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = netlink.ConnectParams{
		Ssid:            c.SSID,
		Passphrase:      c.Passphrase,
		ConnectTimeout:  r.opts.ConnectTimeout,
		WatchdogTimeout: r.opts.WatchdogTimeout,
	}
	return nil
}

// Start subscribes to link events. The co-processor itself is brought up
// by the netlink probe before the radio is built.
func (r *Radio) Start(context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.state = types.RadioStarted
	r.mu.Unlock()

	r.link.NetNotify(r.onEvent)
	return nil
}

func (r *Radio) onEvent(ev netlink.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev {
	case netlink.EventNetUp:
		r.linkUp = true
	case netlink.EventNetDown:
		r.linkUp = false
		if r.state == types.RadioConnected {
			r.state = types.RadioDisconnected
		}
		select {
		case r.down <- struct{}{}:
		default:
		}
	}
}

// Connect blocks in NetConnect. If ctx ends first the call keeps running
// in the background and its result is discarded.
func (r *Radio) Connect(ctx context.Context) error {
	r.mu.Lock()
	r.state = types.RadioConnecting
	params := r.params
	r.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- r.link.NetConnect(&params) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.state = types.RadioDisconnected
			return err
		}
		r.state = types.RadioConnected
		r.linkUp = true
		r.since = time.Now()
		// Forget downs from before this association.
		select {
		case <-r.down:
		default:
		}
		return nil
	}
}

func (r *Radio) WaitForEvent(ctx context.Context, ev types.RadioEvent) error {
	if ev != types.RadioEventDisconnected {
		return errcode.Unsupported
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.down:
		return nil
	}
}

// -----------------------------------------------------------------------------
// netstack.Driver
// -----------------------------------------------------------------------------

// Run has nothing to pump: the co-processor runs its own IP stack. It
// parks until ctx ends and then drops the association.
func (r *Radio) Run(ctx context.Context) error {
	<-ctx.Done()
	r.mu.Lock()
	wasUp := r.state == types.RadioConnected
	r.mu.Unlock()
	if wasUp {
		r.link.NetDisconnect()
	}
	return nil
}

func (r *Radio) IsLinkUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linkUp
}

func (r *Radio) ConfigV4() (types.Lease, bool) {
	if r.addr == nil {
		return types.Lease{}, false
	}
	a, err := r.addr.Addr()
	if err != nil || !a.IsValid() || a.IsUnspecified() {
		return types.Lease{}, false
	}
	r.mu.Lock()
	since := r.since
	r.mu.Unlock()
	return types.Lease{Address: netip.PrefixFrom(a, a.BitLen()), AcquiredAt: since}, true
}
