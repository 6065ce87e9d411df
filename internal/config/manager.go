package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("MENTIONPULSE")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// Config file is optional, defaults + env vars carry a bare install.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no file, use defaults
		} else if os.IsNotExist(err) {
			// no file, use defaults
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return m.unmarshalConfig()
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		select {
		case m.watchChan <- *m.config:
		default:
			// channel full, skip this update
		}
	})
	return m.watchChan
}

// Reload re-reads configuration from sources.
func (m *viperManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return m.unmarshalConfig()
}

// setDefaults sets default values in viper.
func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("database.sqlite_path", defaults.Database.SQLitePath)

	m.viper.SetDefault("analysis.anomaly_method", defaults.Analysis.AnomalyMethod)
	m.viper.SetDefault("analysis.anomaly_threshold", defaults.Analysis.AnomalyThreshold)
	m.viper.SetDefault("analysis.window", defaults.Analysis.Window)
	m.viper.SetDefault("analysis.burst_sensitivity", defaults.Analysis.BurstSensitivity)
	m.viper.SetDefault("analysis.min_burst_duration", defaults.Analysis.MinBurstDuration)
	m.viper.SetDefault("analysis.max_days_gap", defaults.Analysis.MaxDaysGap)
	m.viper.SetDefault("analysis.correlation_method", defaults.Analysis.CorrelationMethod)
	m.viper.SetDefault("analysis.min_correlation", defaults.Analysis.MinCorrelation)
	m.viper.SetDefault("analysis.min_data_points", defaults.Analysis.MinDataPoints)
	m.viper.SetDefault("analysis.max_lag", defaults.Analysis.MaxLag)
	m.viper.SetDefault("analysis.forecast_horizon", defaults.Analysis.ForecastHorizon)
	m.viper.SetDefault("analysis.event_threshold", defaults.Analysis.EventThreshold)
	m.viper.SetDefault("analysis.workers", defaults.Analysis.Workers)
	m.viper.SetDefault("analysis.task_timeout_seconds", defaults.Analysis.TaskTimeoutSec)

	m.viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	m.viper.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file", defaults.Logging.File)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
}

// unmarshalConfig unmarshals viper config into the Config struct.
func (m *viperManager) unmarshalConfig() error {
	cfg := &Config{}

	cfg.Database.SQLitePath = m.viper.GetString("database.sqlite_path")

	cfg.Analysis.AnomalyMethod = m.viper.GetString("analysis.anomaly_method")
	cfg.Analysis.AnomalyThreshold = m.viper.GetFloat64("analysis.anomaly_threshold")
	cfg.Analysis.Window = m.viper.GetInt("analysis.window")
	cfg.Analysis.BurstSensitivity = m.viper.GetFloat64("analysis.burst_sensitivity")
	cfg.Analysis.MinBurstDuration = m.viper.GetInt("analysis.min_burst_duration")
	cfg.Analysis.MaxDaysGap = m.viper.GetInt("analysis.max_days_gap")
	cfg.Analysis.CorrelationMethod = m.viper.GetString("analysis.correlation_method")
	cfg.Analysis.MinCorrelation = m.viper.GetFloat64("analysis.min_correlation")
	cfg.Analysis.MinDataPoints = m.viper.GetInt("analysis.min_data_points")
	cfg.Analysis.MaxLag = m.viper.GetInt("analysis.max_lag")
	cfg.Analysis.ForecastHorizon = m.viper.GetInt("analysis.forecast_horizon")
	cfg.Analysis.EventThreshold = m.viper.GetFloat64("analysis.event_threshold")
	cfg.Analysis.Workers = m.viper.GetInt("analysis.workers")
	cfg.Analysis.TaskTimeoutSec = m.viper.GetInt("analysis.task_timeout_seconds")

	cfg.Metrics.Enabled = m.viper.GetBool("metrics.enabled")
	cfg.Metrics.ListenAddr = m.viper.GetString("metrics.listen_addr")

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.File = m.viper.GetString("logging.file")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")

	m.config = cfg
	return nil
}
