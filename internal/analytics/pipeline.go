// Package analytics orchestrates the detectors, correlation analysis, and
// forecasting over a mention corpus. Per-entity work runs on a bounded
// worker pool; each task carries its own deadline so one slow model fit
// cannot stall the batch.
package analytics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mentionpulse/mentionpulse-analytics/internal/anomaly"
	"github.com/mentionpulse/mentionpulse-analytics/internal/burst"
	"github.com/mentionpulse/mentionpulse-analytics/internal/config"
	"github.com/mentionpulse/mentionpulse-analytics/internal/correlation"
	"github.com/mentionpulse/mentionpulse-analytics/internal/events"
	"github.com/mentionpulse/mentionpulse-analytics/internal/forecast"
	"github.com/mentionpulse/mentionpulse-analytics/internal/metrics"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// EntityReport is the full single-entity analysis output.
type EntityReport struct {
	Entity          string                    `json:"entity"`
	Summary         timeseries.Summary        `json:"summary"`
	Anomalies       []anomaly.Record          `json:"anomalies"`
	BurstEvents     []burst.Event             `json:"burst_events"`
	CombinedEvents  []events.CombinedEvent    `json:"combined_events"`
	Forecast        *forecast.EnsembleResult  `json:"forecast,omitempty"`
	PredictedEvents []forecast.PredictedEvent `json:"predicted_events,omitempty"`
}

// BatchReport is the output of a multi-entity analysis run.
type BatchReport struct {
	Entities     []*EntityReport           `json:"entities"`
	Correlations *events.CorrelationReport `json:"correlations,omitempty"`
	CoBursts     []events.CrossEntityEvent `json:"co_bursts,omitempty"`
	Causal       []correlation.Causal      `json:"causal,omitempty"`
}

// Pipeline wires the analysis components behind one entry point.
type Pipeline struct {
	provider timeseries.Provider
	cfg      *config.Config
	logger   *zap.Logger

	detector *events.EntityDetector
	multi    *events.MultiDetector
	burst    *burst.Detector
	ensemble *forecast.Ensemble
}

// New builds a Pipeline from validated configuration. The enricher may be
// nil; cross-entity events then carry no corpus context.
func New(cfg *config.Config, provider timeseries.Provider, enricher events.Enricher, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	anomalyCfg := anomaly.Config{
		Method:           anomaly.Method(cfg.Analysis.AnomalyMethod),
		Threshold:        cfg.Analysis.AnomalyThreshold,
		Window:           cfg.Analysis.Window,
		BurstSensitivity: cfg.Analysis.BurstSensitivity,
	}
	burstCfg := burst.Config{
		Sensitivity: cfg.Analysis.BurstSensitivity,
		Window:      cfg.Analysis.Window,
		MinDuration: cfg.Analysis.MinBurstDuration,
	}

	detector, err := events.NewEntityDetector(events.EntityConfig{
		Anomaly:    anomalyCfg,
		Burst:      burstCfg,
		MaxDaysGap: cfg.Analysis.MaxDaysGap,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	multi, err := events.NewMultiDetector(events.MultiConfig{
		Correlation: correlation.Config{
			Method:         correlation.Method(cfg.Analysis.CorrelationMethod),
			MinCorrelation: cfg.Analysis.MinCorrelation,
			MinDataPoints:  cfg.Analysis.MinDataPoints,
			MaxLag:         cfg.Analysis.MaxLag,
		},
		Burst:      burstCfg,
		MaxDaysGap: cfg.Analysis.MaxDaysGap,
		MaxLag:     cfg.Analysis.MaxLag,
	}, enricher, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	bd, err := burst.New(burstCfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	ensemble := forecast.NewEnsemble(logger)
	if cfg.Analysis.TaskTimeoutSec > 0 {
		ensemble.Timeout = time.Duration(cfg.Analysis.TaskTimeoutSec) * time.Second
	}

	return &Pipeline{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		detector: detector,
		multi:    multi,
		burst:    bd,
		ensemble: ensemble,
	}, nil
}

// AnalyzeEntity runs the full single-entity analysis.
func (p *Pipeline) AnalyzeEntity(ctx context.Context, entity string, from, to time.Time) (*EntityReport, error) {
	start := time.Now()
	ctx, cancel := p.taskContext(ctx)
	defer cancel()

	s, err := p.provider.Series(ctx, entity, from, to)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("entity", "error").Inc()
		return nil, err
	}
	metrics.SeriesLength.Observe(float64(s.Len()))

	report := &EntityReport{
		Entity:  entity,
		Summary: timeseries.Summarize(s.Values()),
	}

	ad, err := anomaly.New(anomaly.Config{
		Method:           anomaly.Method(p.cfg.Analysis.AnomalyMethod),
		Threshold:        p.cfg.Analysis.AnomalyThreshold,
		Window:           p.cfg.Analysis.Window,
		BurstSensitivity: p.cfg.Analysis.BurstSensitivity,
	})
	if err != nil {
		return nil, err
	}
	if report.Anomalies, err = ad.Detect(s); err != nil {
		p.logger.Warn("anomaly detection failed", zap.String("entity", entity), zap.Error(err))
	}

	report.BurstEvents = p.burst.DetectEvents(s)

	if report.CombinedEvents, err = p.detector.DetectSeries(s); err != nil {
		return nil, err
	}

	// No forecast is "prediction unavailable", not a failed analysis.
	if ens, err := p.ensemble.Forecast(ctx, s, p.cfg.Analysis.ForecastHorizon); err != nil {
		p.logger.Warn("forecast unavailable", zap.String("entity", entity), zap.Error(err))
	} else {
		report.Forecast = ens
		report.PredictedEvents, err = forecast.PredictEvents(ens.Points, entity, forecast.PredictorConfig{
			Threshold:  p.cfg.Analysis.EventThreshold,
			PeakWindow: 1,
		})
		if err != nil {
			return nil, err
		}
	}

	p.observe("entity", start, report)
	return report, nil
}

// AnalyzeBatch analyzes every entity on a bounded pool, then runs the
// cross-entity passes.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, entities []string, from, to time.Time) (*BatchReport, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", timeseries.ErrInvalidParameter)
	}
	start := time.Now()

	reports := make([]*EntityReport, len(entities))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, name := range entities {
		g.Go(func() error {
			r, err := p.AnalyzeEntity(gctx, name, from, to)
			if err != nil {
				return fmt.Errorf("analyze %q: %w", name, err)
			}
			mu.Lock()
			reports[i] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.AnalysesTotal.WithLabelValues("batch", "error").Inc()
		return nil, err
	}

	batch := &BatchReport{Entities: reports}
	if len(entities) > 1 {
		var err error
		if batch.Correlations, err = p.multi.Correlations(ctx, p.provider, entities, from, to); err != nil {
			return nil, err
		}
		if batch.CoBursts, err = p.multi.CoBursts(ctx, p.provider, entities, from, to); err != nil {
			return nil, err
		}
		if batch.Causal, err = p.multi.CausalNetwork(ctx, p.provider, entities, from, to); err != nil {
			return nil, err
		}
		metrics.EventsDetected.WithLabelValues("cross_entity").Add(float64(len(batch.CoBursts)))
	}

	metrics.AnalysesTotal.WithLabelValues("batch", "ok").Inc()
	metrics.AnalysisDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	return batch, nil
}

func (p *Pipeline) observe(op string, start time.Time, r *EntityReport) {
	metrics.AnalysesTotal.WithLabelValues(op, "ok").Inc()
	metrics.AnalysisDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.EntitiesAnalyzed.WithLabelValues(op).Inc()
	metrics.EventsDetected.WithLabelValues("combined").Add(float64(len(r.CombinedEvents)))
	metrics.EventsDetected.WithLabelValues("burst").Add(float64(len(r.BurstEvents)))
	metrics.EventsDetected.WithLabelValues("predicted").Add(float64(len(r.PredictedEvents)))
	for _, name := range sortedModels(r) {
		metrics.ForecastStrategyRuns.WithLabelValues(name, "ok").Inc()
	}
	if r.Forecast != nil {
		for _, name := range r.Forecast.Failed {
			metrics.ForecastStrategyRuns.WithLabelValues(name, "error").Inc()
		}
	}
}

func sortedModels(r *EntityReport) []string {
	if r.Forecast == nil {
		return nil
	}
	out := append([]string(nil), r.Forecast.Succeeded...)
	sort.Strings(out)
	return out
}

func (p *Pipeline) workers() int {
	if p.cfg.Analysis.Workers > 0 {
		return p.cfg.Analysis.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (p *Pipeline) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Analysis.TaskTimeoutSec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(p.cfg.Analysis.TaskTimeoutSec)*time.Second)
}
