package config

import (
	"fmt"
	"net"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

var anomalyMethods = map[string]bool{
	"isolation_forest":     true,
	"local_outlier_factor": true,
	"one_class_svm":        true,
	"z_score":              true,
	"iqr":                  true,
	"moving_average":       true,
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Database.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.sqlite_path",
			Message: "sqlite_path is required",
		})
	}

	if !anomalyMethods[c.Analysis.AnomalyMethod] {
		errs = append(errs, &ValidationError{
			Field:   "analysis.anomaly_method",
			Message: fmt.Sprintf("unknown method %q", c.Analysis.AnomalyMethod),
		})
	}
	if c.Analysis.AnomalyThreshold <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.anomaly_threshold",
			Message: fmt.Sprintf("threshold must be > 0, got %v", c.Analysis.AnomalyThreshold),
		})
	}
	if c.Analysis.Window < 2 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.window",
			Message: fmt.Sprintf("window must be >= 2, got %d", c.Analysis.Window),
		})
	}
	if c.Analysis.BurstSensitivity <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.burst_sensitivity",
			Message: fmt.Sprintf("sensitivity must be > 0, got %v", c.Analysis.BurstSensitivity),
		})
	}
	if c.Analysis.MinBurstDuration < 1 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.min_burst_duration",
			Message: fmt.Sprintf("duration must be >= 1, got %d", c.Analysis.MinBurstDuration),
		})
	}
	if c.Analysis.MaxDaysGap < 1 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.max_days_gap",
			Message: fmt.Sprintf("gap must be >= 1, got %d", c.Analysis.MaxDaysGap),
		})
	}
	if m := c.Analysis.CorrelationMethod; m != "pearson" && m != "spearman" {
		errs = append(errs, &ValidationError{
			Field:   "analysis.correlation_method",
			Message: fmt.Sprintf("method must be pearson or spearman, got %q", m),
		})
	}
	if c.Analysis.MinCorrelation < 0 || c.Analysis.MinCorrelation > 1 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.min_correlation",
			Message: fmt.Sprintf("must be within [0, 1], got %v", c.Analysis.MinCorrelation),
		})
	}
	if c.Analysis.MinDataPoints < 3 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.min_data_points",
			Message: fmt.Sprintf("must be >= 3, got %d", c.Analysis.MinDataPoints),
		})
	}
	if c.Analysis.MaxLag < 1 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.max_lag",
			Message: fmt.Sprintf("must be >= 1, got %d", c.Analysis.MaxLag),
		})
	}
	if c.Analysis.ForecastHorizon < 1 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.forecast_horizon",
			Message: fmt.Sprintf("must be >= 1, got %d", c.Analysis.ForecastHorizon),
		})
	}
	if c.Analysis.EventThreshold <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.event_threshold",
			Message: fmt.Sprintf("must be > 0, got %v", c.Analysis.EventThreshold),
		})
	}
	if c.Analysis.Workers < 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.workers",
			Message: fmt.Sprintf("must be >= 0, got %d", c.Analysis.Workers),
		})
	}
	if c.Analysis.TaskTimeoutSec < 0 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.task_timeout_seconds",
			Message: fmt.Sprintf("must be >= 0, got %d", c.Analysis.TaskTimeoutSec),
		})
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "metrics.listen_addr",
				Message: fmt.Sprintf("invalid listen address %q: %v", c.Metrics.ListenAddr, err),
			})
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("level must be debug, info, warn, or error, got %q", c.Logging.Level),
		})
	}
	if f := c.Logging.Format; f != "json" && f != "text" {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("format must be json or text, got %q", f),
		})
	}

	return errs
}
