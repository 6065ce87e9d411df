package config

import "context"

// Package config provides configuration management for mentionpulse-analytics.
//
// Responsibilities:
//   - Load configuration from YAML files and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (MENTIONPULSE_* prefix)
//   2. YAML config file (default: /etc/mentionpulse/config.yaml)
//   3. Built-in defaults (lowest priority)

// Config contains all configuration fields.
type Config struct {
	// Database configuration
	Database struct {
		SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	} `mapstructure:"database" yaml:"database"`

	// Analysis configuration
	Analysis struct {
		AnomalyMethod    string  `mapstructure:"anomaly_method" yaml:"anomaly_method"`
		AnomalyThreshold float64 `mapstructure:"anomaly_threshold" yaml:"anomaly_threshold"`
		Window           int     `mapstructure:"window" yaml:"window"`
		BurstSensitivity float64 `mapstructure:"burst_sensitivity" yaml:"burst_sensitivity"`
		MinBurstDuration int     `mapstructure:"min_burst_duration" yaml:"min_burst_duration"`
		MaxDaysGap       int     `mapstructure:"max_days_gap" yaml:"max_days_gap"`

		CorrelationMethod string  `mapstructure:"correlation_method" yaml:"correlation_method"`
		MinCorrelation    float64 `mapstructure:"min_correlation" yaml:"min_correlation"`
		MinDataPoints     int     `mapstructure:"min_data_points" yaml:"min_data_points"`
		MaxLag            int     `mapstructure:"max_lag" yaml:"max_lag"`

		ForecastHorizon int     `mapstructure:"forecast_horizon" yaml:"forecast_horizon"`
		EventThreshold  float64 `mapstructure:"event_threshold" yaml:"event_threshold"`

		Workers        int `mapstructure:"workers" yaml:"workers"`
		TaskTimeoutSec int `mapstructure:"task_timeout_seconds" yaml:"task_timeout_seconds"`
	} `mapstructure:"analysis" yaml:"analysis"`

	// Metrics configuration
	Metrics struct {
		Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
		ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	} `mapstructure:"metrics" yaml:"metrics"`

	// Logging configuration
	Logging struct {
		Level      string `mapstructure:"level" yaml:"level"`
		Format     string `mapstructure:"format" yaml:"format"`
		File       string `mapstructure:"file" yaml:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	} `mapstructure:"logging" yaml:"logging"`
}

// Manager loads, validates, and watches configuration.
type Manager interface {
	Load(ctx context.Context) error
	Get(ctx context.Context) *Config
	Validate(ctx context.Context) error
	Watch(ctx context.Context) <-chan Config
	Reload(ctx context.Context) error
}

// NewManager creates a viper-backed Manager reading the given file path.
func NewManager(configPath string) Manager {
	return &viperManager{
		configPath: configPath,
		watchChan:  make(chan Config, 1),
	}
}
