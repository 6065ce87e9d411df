package main

// Package main is the batch entry point for mentionpulse-analytics.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Open the SQLite mention store
//   - Run the analysis pipeline over the requested entities and date range
//   - Write the batch report as JSON to stdout
//   - Optionally expose Prometheus metrics while the batch runs
//   - Shut down cleanly on SIGINT/SIGTERM via context cancellation

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mentionpulse/mentionpulse-analytics/internal/analytics"
	"github.com/mentionpulse/mentionpulse-analytics/internal/config"
	"github.com/mentionpulse/mentionpulse-analytics/internal/logging"
	"github.com/mentionpulse/mentionpulse-analytics/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mentionpulse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "/etc/mentionpulse/config.yaml", "path to config file")
		entityList = flag.String("entities", "", "comma-separated entities to analyze (default: all)")
		fromStr    = flag.String("from", "", "analysis range start, YYYY-MM-DD")
		toStr      = flag.String("to", "", "analysis range end, YYYY-MM-DD (default: today)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := config.NewManager(*configPath)
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return err
	}
	cfg := mgr.Get(ctx)

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	from, to, err := parseRange(*fromStr, *toStr)
	if err != nil {
		return err
	}

	st, err := store.NewSQLite(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.ListenAddr, logger)
	}

	entities, err := resolveEntities(ctx, st, *entityList)
	if err != nil {
		return err
	}

	pipeline, err := analytics.New(cfg, st, st, logger)
	if err != nil {
		return err
	}

	logger.Info("starting batch analysis",
		zap.Int("entities", len(entities)),
		zap.Time("from", from),
		zap.Time("to", to))

	report, err := pipeline.AnalyzeBatch(ctx, entities, from, to)
	if err != nil {
		return err
	}

	for _, er := range report.Entities {
		if err := st.SaveCombinedEvents(ctx, er.CombinedEvents); err != nil {
			logger.Warn("persist combined events failed",
				zap.String("entity", er.Entity), zap.Error(err))
		}
	}
	if err := st.SaveCrossEntityEvents(ctx, report.CoBursts); err != nil {
		logger.Warn("persist cross-entity events failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func parseRange(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr == "" {
		return from, to, fmt.Errorf("-from is required")
	}
	if from, err = time.Parse("2006-01-02", fromStr); err != nil {
		return from, to, fmt.Errorf("parse -from: %w", err)
	}
	if toStr == "" {
		to = time.Now().UTC().Truncate(24 * time.Hour)
	} else if to, err = time.Parse("2006-01-02", toStr); err != nil {
		return from, to, fmt.Errorf("parse -to: %w", err)
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("-to %s is before -from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return from, to, nil
}

func resolveEntities(ctx context.Context, st store.Store, list string) ([]string, error) {
	if list != "" {
		var out []string
		for _, name := range strings.Split(list, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("-entities is empty")
		}
		return out, nil
	}
	entities, err := st.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("store has no entities")
	}
	return entities, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}
