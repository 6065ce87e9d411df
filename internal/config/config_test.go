package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg := m.Get(context.Background())
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}

	if cfg.Analysis.AnomalyMethod != "isolation_forest" {
		t.Errorf("Expected default anomaly method 'isolation_forest', got %s", cfg.Analysis.AnomalyMethod)
	}
	if cfg.Analysis.Window != 7 {
		t.Errorf("Expected default window 7, got %d", cfg.Analysis.Window)
	}
	if cfg.Analysis.ForecastHorizon != 14 {
		t.Errorf("Expected default forecast horizon 14, got %d", cfg.Analysis.ForecastHorizon)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected default log format 'json', got %s", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics to default to enabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	os.Clearenv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
database:
  sqlite_path: /tmp/test-mentions.db
analysis:
  anomaly_method: z_score
  window: 14
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg := m.Get(context.Background())

	if cfg.Database.SQLitePath != "/tmp/test-mentions.db" {
		t.Errorf("Expected sqlite path from file, got %s", cfg.Database.SQLitePath)
	}
	if cfg.Analysis.AnomalyMethod != "z_score" {
		t.Errorf("Expected anomaly method 'z_score' from file, got %s", cfg.Analysis.AnomalyMethod)
	}
	if cfg.Analysis.Window != 14 {
		t.Errorf("Expected window 14 from file, got %d", cfg.Analysis.Window)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug' from file, got %s", cfg.Logging.Level)
	}
	// untouched fields keep their defaults
	if cfg.Analysis.BurstSensitivity != 2.0 {
		t.Errorf("Expected default burst sensitivity 2.0, got %v", cfg.Analysis.BurstSensitivity)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	os.Setenv("MENTIONPULSE_ANALYSIS_WINDOW", "21")
	os.Setenv("MENTIONPULSE_LOGGING_LEVEL", "warn")
	defer func() {
		os.Unsetenv("MENTIONPULSE_ANALYSIS_WINDOW")
		os.Unsetenv("MENTIONPULSE_LOGGING_LEVEL")
	}()

	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg := m.Get(context.Background())

	if cfg.Analysis.Window != 21 {
		t.Errorf("Expected window 21 from env, got %d", cfg.Analysis.Window)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level 'warn' from env, got %s", cfg.Logging.Level)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if errs := DefaultConfig().Validate(); len(errs) != 0 {
		t.Fatalf("Default config should validate, got %v", errs)
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.AnomalyMethod = "psychic"
	cfg.Analysis.Window = 1
	cfg.Analysis.MinCorrelation = 2.0
	cfg.Metrics.ListenAddr = "not-an-address"
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	errs := cfg.Validate()
	if len(errs) != 6 {
		t.Fatalf("Expected 6 validation errors, got %d: %v", len(errs), errs)
	}

	fields := map[string]bool{}
	for _, err := range errs {
		ve, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("Expected *ValidationError, got %T", err)
		}
		fields[ve.Field] = true
	}
	for _, want := range []string{
		"analysis.anomaly_method",
		"analysis.window",
		"analysis.min_correlation",
		"metrics.listen_addr",
		"logging.level",
		"logging.format",
	} {
		if !fields[want] {
			t.Errorf("Expected a validation error for %s", want)
		}
	}
}

func TestManagerValidateAggregatesErrors(t *testing.T) {
	os.Clearenv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  window: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	err := m.Validate(context.Background())
	if err == nil {
		t.Fatal("Expected validation to fail for window 0")
	}
	if !strings.Contains(err.Error(), "analysis.window") {
		t.Errorf("Expected the failing field in the error, got %v", err)
	}
}
