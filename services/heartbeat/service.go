package heartbeat

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"proxnode-go/bus"
	"proxnode-go/services/config"
	"proxnode-go/services/netstack"
	"proxnode-go/services/sensor"
	"proxnode-go/services/wifi"
	"proxnode-go/types"
	"proxnode-go/x/logx"
)

var topicNodeState = bus.T("node", "state")

type Options struct {
	Interval time.Duration // 0 waits for config/heartbeat
	Clock    clockwork.Clock
	Log      logx.Logger
}

// Service logs one status line per interval from the retained bus state.
// It never publishes.
type Service struct {
	conn     *bus.Connection
	clk      clockwork.Clock
	log      logx.Logger
	interval time.Duration
	start    time.Time
	beats    uint32
}

func New(conn *bus.Connection, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	return &Service{conn: conn, clk: opts.Clock, log: opts.Log.Named("heartbeat"), interval: opts.Interval}
}

// Run loops until ctx is cancelled, responding to ticks and config changes.
func (s *Service) Run(ctx context.Context) error {
	cfgSub := s.conn.Subscribe(config.Topic("heartbeat"))
	defer s.conn.Unsubscribe(cfgSub)

	s.start = s.clk.Now()
	tick := s.arm()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("heartbeat service stopping", "beats", s.beats)
			return nil
		case <-tick:
			s.beat()
			tick = s.arm()
		case msg := <-cfgSub.Channel():
			hb, ok := msg.Payload.(config.HeartbeatConfig)
			if !ok || hb.Interval() == s.interval {
				continue
			}
			s.interval = hb.Interval()
			s.log.Infow("heartbeat interval set", "interval", s.interval)
			tick = s.arm()
		}
	}
}

// arm returns nil (blocks forever) when heartbeats are disabled.
func (s *Service) arm() <-chan time.Time {
	if s.interval <= 0 {
		return nil
	}
	return s.clk.After(s.interval)
}

func (s *Service) beat() {
	s.beats++
	kv := []any{"uptime", s.clk.Now().Sub(s.start).Truncate(time.Second)}

	if m, ok := s.conn.Retained(topicNodeState); ok {
		if st, ok := m.Payload.(types.NodeState); ok {
			kv = append(kv, "node", st.Level)
		}
	}
	if m, ok := s.conn.Retained(wifi.TopicState); ok {
		if st, ok := m.Payload.(types.LinkStatus); ok {
			kv = append(kv, "link", st.State.String(), "attempts", st.Attempts, "failures", st.Failures)
		}
	}
	ip := "none"
	if m, ok := s.conn.Retained(netstack.TopicLease); ok {
		if st, ok := m.Payload.(types.LeaseStatus); ok && st.Bound {
			ip = st.Lease.Address.String()
		}
	}
	kv = append(kv, "ip", ip)
	if m, ok := s.conn.Retained(sensor.TopicIndicator); ok {
		if st, ok := m.Payload.(types.IndicatorStatus); ok {
			kv = append(kv, "indicator", st.Color.String(), "range_mm", st.RangeMM)
			if st.Err != "" {
				kv = append(kv, "sensor_err", st.Err)
			}
		}
	}
	s.log.Infow("heartbeat", kv...)
}
