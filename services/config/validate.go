package config

import (
	"fmt"

	"go.uber.org/multierr"

	"proxnode-go/errcode"
)

// vl53l1x accepts these budgets only.
var timingBudgetsUs = []uint32{15000, 20000, 33000, 50000, 100000, 200000, 500000}

// Validate checks configuration correctness and reports every problem at
// once. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &errcode.E{C: errcode.InvalidConfig, Msg: "nil config"}
	}
	var err error
	bad := func(field string, format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%s: "+format, append([]any{field}, args...)...))
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		bad("log.level", "unknown level %q", cfg.Log.Level)
	}

	if cfg.Wifi.RetryBackoffMs <= 0 {
		bad("wifi.retry_backoff_ms", "must be > 0, got %d", cfg.Wifi.RetryBackoffMs)
	}
	if cfg.Wifi.DisconnectCooldownMs < 0 {
		bad("wifi.disconnect_cooldown_ms", "must be >= 0, got %d", cfg.Wifi.DisconnectCooldownMs)
	}
	if cfg.Wifi.ConnectTimeoutMs < 0 {
		bad("wifi.connect_timeout_ms", "must be >= 0, got %d", cfg.Wifi.ConnectTimeoutMs)
	}

	if cfg.Net.ReadyPollMs <= 0 {
		bad("net.ready_poll_ms", "must be > 0, got %d", cfg.Net.ReadyPollMs)
	}
	if cfg.Net.ObservePeriodMs < 0 {
		bad("net.observe_period_ms", "must be >= 0, got %d", cfg.Net.ObservePeriodMs)
	}
	if cfg.Net.RestartDelayMs < 0 {
		bad("net.restart_delay_ms", "must be >= 0, got %d", cfg.Net.RestartDelayMs)
	}

	if cfg.Sensor.ThresholdMM == 0 || cfg.Sensor.ThresholdMM > 4000 {
		bad("sensor.threshold_mm", "must be in 1..4000, got %d", cfg.Sensor.ThresholdMM)
	}
	if cfg.Sensor.RecoverDelayMs < 0 {
		bad("sensor.recover_delay_ms", "must be >= 0, got %d", cfg.Sensor.RecoverDelayMs)
	}
	if !validBudget(cfg.Sensor.TimingBudgetUs) {
		bad("sensor.timing_budget_us", "unsupported budget %d", cfg.Sensor.TimingBudgetUs)
	} else if p := cfg.Sensor.PeriodMs; p != 0 && p*1000 < cfg.Sensor.TimingBudgetUs {
		bad("sensor.period_ms", "%d is shorter than the timing budget", p)
	}
	if cfg.Sensor.EdgeQueue < 0 {
		bad("sensor.edge_queue", "must be >= 0, got %d", cfg.Sensor.EdgeQueue)
	}

	if cfg.Indicator.Pixels < 1 || cfg.Indicator.Pixels > 256 {
		bad("indicator.pixels", "must be in 1..256, got %d", cfg.Indicator.Pixels)
	}
	if cfg.Indicator.Gamma <= 0 || cfg.Indicator.Gamma > 5 {
		bad("indicator.gamma", "must be in (0, 5], got %v", cfg.Indicator.Gamma)
	}

	if cfg.Heartbeat.IntervalMs < 0 {
		bad("heartbeat.interval_ms", "must be >= 0, got %d", cfg.Heartbeat.IntervalMs)
	}

	if cfg.Board.I2CAddr == 0 || cfg.Board.I2CAddr > 0x7f {
		bad("board.i2c_addr", "not a 7-bit address: %#x", cfg.Board.I2CAddr)
	}
	if cfg.Board.TriggerPin < 0 {
		bad("board.trigger_pin", "must be >= 0, got %d", cfg.Board.TriggerPin)
	}

	if err != nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: "config.validate", Err: err}
	}
	return nil
}

func validBudget(us uint32) bool {
	for _, b := range timingBudgetsUs {
		if us == b {
			return true
		}
	}
	return false
}
