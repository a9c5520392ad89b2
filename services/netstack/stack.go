// Package netstack runs the IP layer on top of the wireless link and
// answers the two readiness questions: is the link up, and is an address
// bound.
package netstack

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"proxnode-go/bus"
	"proxnode-go/types"
	"proxnode-go/x/logx"
	"proxnode-go/x/timex"
)

// Driver is the network device plus its DHCP client. Run is its perpetual
// packet/lease pump.
type Driver interface {
	Run(ctx context.Context) error
	IsLinkUp() bool
	ConfigV4() (types.Lease, bool)
}

var TopicLease = bus.T("net", "ipv4", "lease")

type Options struct {
	ObservePeriod time.Duration // default 500ms
	RestartDelay  time.Duration // default 5s
	Clock         clockwork.Clock
	Log           logx.Logger
	Conn          *bus.Connection // optional
}

type Stack struct {
	drv     Driver
	clk     clockwork.Clock
	log     logx.Logger
	conn    *bus.Connection
	observe time.Duration
	restart time.Duration
}

func New(drv Driver, opts Options) *Stack {
	if opts.ObservePeriod <= 0 {
		opts.ObservePeriod = 500 * time.Millisecond
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	return &Stack{
		drv:     drv,
		clk:     opts.Clock,
		log:     opts.Log.Named("netstack"),
		conn:    opts.Conn,
		observe: opts.ObservePeriod,
		restart: opts.RestartDelay,
	}
}

// IsLinkUp reports the driver's link state.
func (s *Stack) IsLinkUp() bool { return s.drv.IsLinkUp() }

// BoundAddress returns the current lease, but only while the link is up.
func (s *Stack) BoundAddress() (types.Lease, bool) {
	if !s.drv.IsLinkUp() {
		return types.Lease{}, false
	}
	l, ok := s.drv.ConfigV4()
	if !ok || !l.Bound() {
		return types.Lease{}, false
	}
	return l, true
}

// Run keeps the driver pump alive and publishes link/lease transitions until
// ctx is cancelled. It returns nil.
func (s *Stack) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { s.pump(ctx); return nil })
	g.Go(func() error { s.watch(ctx); return nil })
	return g.Wait()
}

func (s *Stack) pump(ctx context.Context) {
	for {
		err := s.drv.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Errorw("network driver stopped, restarting", "err", err, "in", s.restart)
		if timex.Sleep(ctx, s.clk, s.restart) != nil {
			return
		}
	}
}

func (s *Stack) watch(ctx context.Context) {
	var (
		first = true
		last  types.LeaseStatus
	)
	for {
		cur := types.LeaseStatus{LinkUp: s.drv.IsLinkUp()}
		if l, ok := s.BoundAddress(); ok {
			cur.Bound, cur.Lease = true, l
		}
		if first || changed(last, cur) {
			s.report(last, cur)
			last, first = cur, false
		}
		if timex.Sleep(ctx, s.clk, s.observe) != nil {
			return
		}
	}
}

func changed(a, b types.LeaseStatus) bool {
	return a.LinkUp != b.LinkUp || a.Bound != b.Bound ||
		a.Lease.Address != b.Lease.Address || a.Lease.Gateway != b.Lease.Gateway
}

func (s *Stack) report(prev, cur types.LeaseStatus) {
	switch {
	case cur.LinkUp && !prev.LinkUp:
		s.log.Infow("link up")
	case !cur.LinkUp && prev.LinkUp:
		s.log.Warnw("link down")
	}
	switch {
	case cur.Bound:
		s.log.Infow("ipv4 lease bound",
			"address", cur.Lease.Address.String(),
			"gateway", cur.Lease.Gateway.String(),
			"lease", cur.Lease.Duration)
	case prev.Bound:
		s.log.Warnw("ipv4 lease lost")
	}

	if s.conn != nil {
		cur.TSms = timex.NowMs()
		s.conn.Publish(s.conn.NewMessage(TopicLease, cur, true))
	}
}
