package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Database defaults
	cfg.Database.SQLitePath = "/var/lib/mentionpulse/mentions.db"

	// Analysis defaults
	cfg.Analysis.AnomalyMethod = "isolation_forest"
	cfg.Analysis.AnomalyThreshold = 3.0
	cfg.Analysis.Window = 7
	cfg.Analysis.BurstSensitivity = 2.0
	cfg.Analysis.MinBurstDuration = 2
	cfg.Analysis.MaxDaysGap = 3
	cfg.Analysis.CorrelationMethod = "pearson"
	cfg.Analysis.MinCorrelation = 0.5
	cfg.Analysis.MinDataPoints = 10
	cfg.Analysis.MaxLag = 7
	cfg.Analysis.ForecastHorizon = 14
	cfg.Analysis.EventThreshold = 3.0
	cfg.Analysis.Workers = 0 // 0 means GOMAXPROCS
	cfg.Analysis.TaskTimeoutSec = 30

	// Metrics defaults
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = ":9090"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 28

	return cfg
}
