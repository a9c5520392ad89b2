package config

import (
	"proxnode-go/bus"
	"proxnode-go/x/logx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

// Section topics, e.g. config/heartbeat.
func Topic(section string) bus.Topic { return bus.T(configPrefix, section) }

// Service publishes each config section as a retained message so late
// subscribers (heartbeat, diagnostics) can read the effective policy.
type Service struct {
	Name string
	cfg  *Config
	log  logx.Logger
}

func NewService(cfg *Config, log logx.Logger) *Service {
	return &Service{Name: serviceName, cfg: cfg, log: log.Named(serviceName)}
}

// Publish runs synchronously so the retained state exists before any other
// task starts.
func (s *Service) Publish(conn *bus.Connection) {
	sections := []struct {
		key string
		val any
	}{
		{"log", s.cfg.Log},
		{"wifi", s.cfg.Wifi},
		{"net", s.cfg.Net},
		{"sensor", s.cfg.Sensor},
		{"indicator", s.cfg.Indicator},
		{"heartbeat", s.cfg.Heartbeat},
		{"board", s.cfg.Board},
	}
	for _, sec := range sections {
		conn.Publish(conn.NewMessage(Topic(sec.key), sec.val, true))
	}
	s.log.Debugw("config published", "sections", len(sections))
}
