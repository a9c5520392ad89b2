// Package config holds the node's policy constants: retry timings, the
// sensing threshold, indicator rendering and board wiring.
//
// Host builds decode an embedded YAML document over Default(); TinyGo builds
// use Default() directly. Either way the result goes through Validate and
// Normalize before any service sees it.
package config

import (
	"time"

	"proxnode-go/types"
	"proxnode-go/x/timex"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Wifi      WifiConfig      `yaml:"wifi"`
	Net       NetConfig       `yaml:"net"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Board     BoardConfig     `yaml:"board"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// ---- WIFI ----

type WifiConfig struct {
	Interface            string `yaml:"interface"`
	RetryBackoffMs       int    `yaml:"retry_backoff_ms"`
	DisconnectCooldownMs int    `yaml:"disconnect_cooldown_ms"`
	ConnectTimeoutMs     int    `yaml:"connect_timeout_ms"`
}

func (w WifiConfig) RetryBackoff() time.Duration       { return timex.Ms(w.RetryBackoffMs) }
func (w WifiConfig) DisconnectCooldown() time.Duration { return timex.Ms(w.DisconnectCooldownMs) }
func (w WifiConfig) ConnectTimeout() time.Duration     { return timex.Ms(w.ConnectTimeoutMs) }

// ---- NET ----

type NetConfig struct {
	ReadyPollMs     int `yaml:"ready_poll_ms"`
	ObservePeriodMs int `yaml:"observe_period_ms"` // 0 => ready_poll_ms
	RestartDelayMs  int `yaml:"restart_delay_ms"`  // 0 => wifi.retry_backoff_ms
	LeaseTimeoutMs  int `yaml:"lease_timeout_ms"`
}

func (n NetConfig) ReadyPoll() time.Duration     { return timex.Ms(n.ReadyPollMs) }
func (n NetConfig) ObservePeriod() time.Duration { return timex.Ms(n.ObservePeriodMs) }
func (n NetConfig) RestartDelay() time.Duration  { return timex.Ms(n.RestartDelayMs) }
func (n NetConfig) LeaseTimeout() time.Duration  { return timex.Ms(n.LeaseTimeoutMs) }

// ---- SENSOR ----

type SensorConfig struct {
	ThresholdMM    uint32 `yaml:"threshold_mm"`
	FailFast       bool   `yaml:"fail_fast"`
	RecoverDelayMs int    `yaml:"recover_delay_ms"`
	TimingBudgetUs uint32 `yaml:"timing_budget_us"`
	PeriodMs       uint32 `yaml:"period_ms"` // 0 => derived from the timing budget
	EdgeQueue      int    `yaml:"edge_queue"`
}

func (s SensorConfig) RecoverDelay() time.Duration { return timex.Ms(s.RecoverDelayMs) }

// ---- INDICATOR ----

type RGB struct {
	R uint8 `yaml:"r"`
	G uint8 `yaml:"g"`
	B uint8 `yaml:"b"`
}

func (c RGB) Color() types.Color { return types.Color{R: c.R, G: c.G, B: c.B} }

type IndicatorConfig struct {
	Pixels     int     `yaml:"pixels"`
	Brightness uint8   `yaml:"brightness"`
	Gamma      float64 `yaml:"gamma"`
	Alert      RGB     `yaml:"alert"`
	Clear      RGB     `yaml:"clear"`
}

// ---- HEARTBEAT ----

type HeartbeatConfig struct {
	IntervalMs int `yaml:"interval_ms"` // 0 disables
}

func (h HeartbeatConfig) Interval() time.Duration { return timex.Ms(h.IntervalMs) }

// ---- BOARD ----

// BoardConfig names the hardware the platform layer opens. Pin numbers are
// GPIO numbers on both targets; the Linux fields are ignored on the MCU.
type BoardConfig struct {
	I2CDevice   string `yaml:"i2c_device"`
	I2CAddr     uint16 `yaml:"i2c_addr"`
	I2CHz       uint32 `yaml:"i2c_hz"`
	SDAPin      int    `yaml:"sda_pin"`
	SCLPin      int    `yaml:"scl_pin"`
	TriggerPin  int    `yaml:"trigger_pin"`
	LEDPin      int    `yaml:"led_pin"`
	LEDName     string `yaml:"led_name"`
	GPIOChipDir string `yaml:"gpio_dir"`
	LEDClassDir string `yaml:"led_dir"`
}

// Default returns the compiled-in policy.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Wifi: WifiConfig{
			Interface:            "wlan0",
			RetryBackoffMs:       5000,
			DisconnectCooldownMs: 5000,
			ConnectTimeoutMs:     20000,
		},
		Net: NetConfig{
			ReadyPollMs:    500,
			LeaseTimeoutMs: 10000,
		},
		Sensor: SensorConfig{
			ThresholdMM:    200,
			RecoverDelayMs: 1000,
			TimingBudgetUs: 200000,
			EdgeQueue:      4,
		},
		Indicator: IndicatorConfig{
			Pixels:     1,
			Brightness: 10,
			Gamma:      2.8,
			Alert:      RGB{G: 255},
			Clear:      RGB{R: 255},
		},
		Heartbeat: HeartbeatConfig{IntervalMs: 30000},
		Board: BoardConfig{
			I2CDevice:   "/dev/i2c-1",
			I2CAddr:     0x29,
			I2CHz:       400000,
			SDAPin:      6,
			SCLPin:      7,
			TriggerPin:  10,
			LEDPin:      8,
			LEDName:     "rgb:status",
			GPIOChipDir: "/sys/class/gpio",
			LEDClassDir: "/sys/class/leds",
		},
	}
}
