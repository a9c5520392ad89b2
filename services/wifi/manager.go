// Package wifi keeps the node associated with its wireless network.
//
// Manager is a single goroutine state machine: it makes sure the radio is
// started, connects, waits for a disconnect, cools down and tries again.
// It never gives up and never returns an error; failures are logged,
// counted and published.
package wifi

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"proxnode-go/bus"
	"proxnode-go/errcode"
	"proxnode-go/types"
	"proxnode-go/x/logx"
	"proxnode-go/x/timex"
)

// Radio is the wireless driver the manager owns.
type Radio interface {
	State() types.RadioState
	IsStarted() (bool, error)
	SetConfiguration(types.Credential) error
	Start(ctx context.Context) error
	Connect(ctx context.Context) error
	WaitForEvent(ctx context.Context, ev types.RadioEvent) error
}

// Radios that can describe themselves get logged once on Run.
type capabilityReporter interface {
	Capabilities() string
}

var TopicState = bus.T("net", "wifi", "state")

type Options struct {
	RetryBackoff       time.Duration // default 5s
	DisconnectCooldown time.Duration // default 5s
	Clock              clockwork.Clock
	Log                logx.Logger
	Conn               *bus.Connection // optional
}

type Stats struct {
	Attempts      uint32
	Failures      uint32
	StartFailures uint32
	Disconnects   uint32
}

type Manager struct {
	radio Radio
	cred  types.Credential
	clk   clockwork.Clock
	log   logx.Logger
	conn  *bus.Connection

	backoff  time.Duration
	cooldown time.Duration

	mu    sync.Mutex
	state types.LinkState
	stats Stats
}

func New(radio Radio, cred types.Credential, opts Options) *Manager {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Second
	}
	if opts.DisconnectCooldown <= 0 {
		opts.DisconnectCooldown = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	return &Manager{
		radio:    radio,
		cred:     cred,
		clk:      opts.Clock,
		log:      opts.Log.Named("wifi"),
		conn:     opts.Conn,
		backoff:  opts.RetryBackoff,
		cooldown: opts.DisconnectCooldown,
		state:    types.LinkDisconnected,
	}
}

func (m *Manager) State() types.LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Run drives the association loop until ctx is cancelled. It returns nil.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Infow("start connection task", "ssid", m.cred.SSID)
	if cr, ok := m.radio.(capabilityReporter); ok {
		m.log.Infow("radio capabilities", "caps", cr.Capabilities())
	}
	m.setState(types.LinkDisconnected, nil)

	for ctx.Err() == nil {
		if m.radio.State() == types.RadioConnected {
			if !m.awaitDisconnect(ctx) {
				break
			}
		}

		if started, err := m.radio.IsStarted(); err != nil || !started {
			if err := m.start(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				m.log.Errorw("failed to start wifi", "err", err, "code", string(errcode.Of(err)))
				m.setState(types.LinkDisconnected, func(s *Stats) { s.StartFailures++ })
				if timex.Sleep(ctx, m.clk, m.backoff) != nil {
					break
				}
				continue
			}
		}

		m.log.Infow("about to connect")
		m.setState(types.LinkConnecting, func(s *Stats) { s.Attempts++ })
		if err := m.radio.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			err = errcode.Wrap(errcode.AssocFailed, "wifi.connect", err)
			m.log.Warnw("failed to connect to wifi", "err", err, "retry_in", m.backoff)
			m.setState(types.LinkDisconnected, func(s *Stats) { s.Failures++ })
			if timex.Sleep(ctx, m.clk, m.backoff) != nil {
				break
			}
			continue
		}
		m.log.Infow("wifi connected")
		m.setState(types.LinkConnected, nil)
	}

	m.log.Infow("connection task stopping")
	return nil
}

// awaitDisconnect parks until the radio reports a disconnect, then holds
// off for the cooldown. It returns false when ctx ends the wait.
func (m *Manager) awaitDisconnect(ctx context.Context) bool {
	m.setState(types.LinkAwaitingDisconnect, nil)
	if err := m.radio.WaitForEvent(ctx, types.RadioEventDisconnected); err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.log.Warnw("waiting for disconnect failed", "err", err)
	}
	m.log.Infow("wifi disconnected", "cooldown", m.cooldown)
	m.setState(types.LinkDisconnected, func(s *Stats) { s.Disconnects++ })
	return timex.Sleep(ctx, m.clk, m.cooldown) == nil
}

func (m *Manager) start(ctx context.Context) error {
	if err := m.radio.SetConfiguration(m.cred); err != nil {
		return errcode.Wrap(errcode.RadioConfigFailed, "wifi.configure", err)
	}
	m.log.Infow("starting wifi")
	if err := m.radio.Start(ctx); err != nil {
		return errcode.Wrap(errcode.RadioStartFailed, "wifi.start", err)
	}
	m.log.Infow("wifi started")
	return nil
}

func (m *Manager) setState(s types.LinkState, bump func(*Stats)) {
	m.mu.Lock()
	m.state = s
	if bump != nil {
		bump(&m.stats)
	}
	st := types.LinkStatus{
		State:       s,
		Attempts:    m.stats.Attempts,
		Failures:    m.stats.Failures,
		Disconnects: m.stats.Disconnects,
		TSms:        timex.NowMs(),
	}
	m.mu.Unlock()

	if m.conn != nil {
		m.conn.Publish(m.conn.NewMessage(TopicState, st, true))
	}
}
