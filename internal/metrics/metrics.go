package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis metrics for production monitoring
var (
	// Pipeline metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentionpulse_analyses_total",
			Help: "Total number of analysis operations run",
		},
		[]string{"operation", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentionpulse_analysis_duration_seconds",
			Help:    "Analysis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"operation"},
	)

	EntitiesAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentionpulse_entities_analyzed_total",
			Help: "Total number of per-entity analyses",
		},
		[]string{"operation"},
	)

	// Detection metrics
	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentionpulse_events_detected_total",
			Help: "Total number of events emitted by each detector",
		},
		[]string{"detector"}, // anomaly/burst/change_point/combined/cross_entity/predicted
	)

	// Forecast metrics
	ForecastStrategyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentionpulse_forecast_strategy_runs_total",
			Help: "Total number of forecast strategy executions",
		},
		[]string{"model", "status"},
	)

	ForecastStrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentionpulse_forecast_strategy_duration_seconds",
			Help:    "Forecast strategy fit-and-predict duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"model"},
	)

	// Store metrics
	StoreQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentionpulse_store_queries_total",
			Help: "Total number of store queries",
		},
		[]string{"query", "status"},
	)

	SeriesLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mentionpulse_series_length_days",
			Help:    "Length in days of series fetched for analysis",
			Buckets: prometheus.ExponentialBuckets(8, 2, 8), // 8 to ~1000 days
		},
	)
)
