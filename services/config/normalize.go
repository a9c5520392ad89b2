package config

// Normalize fills derived defaults. Call it only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Net.ObservePeriodMs == 0 {
		cfg.Net.ObservePeriodMs = cfg.Net.ReadyPollMs
	}
	if cfg.Net.RestartDelayMs == 0 {
		cfg.Net.RestartDelayMs = cfg.Wifi.RetryBackoffMs
	}
	// Continuous ranging needs a little slack over the budget between
	// measurements.
	if cfg.Sensor.PeriodMs == 0 {
		cfg.Sensor.PeriodMs = cfg.Sensor.TimingBudgetUs/1000 + 4
	}
	if cfg.Sensor.EdgeQueue == 0 {
		cfg.Sensor.EdgeQueue = 4
	}
}
