// Package events merges raw detector output into higher-level events, for a
// single entity and across entity sets.
package events

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentionpulse/mentionpulse-analytics/internal/anomaly"
	"github.com/mentionpulse/mentionpulse-analytics/internal/burst"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// CombinedEvent is one merged event for one entity.
type CombinedEvent struct {
	ID          string    `json:"id"`
	Entity      string    `json:"entity"`
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Score       float64   `json:"score"`
	Methods     []string  `json:"methods"`
	Description string    `json:"description"`
}

// detection is one raw (date, score, type) triple before merging.
type detection struct {
	date        time.Time
	value       float64
	score       float64
	method      string
	description string
}

// EntityConfig parameterizes an EntityDetector.
type EntityConfig struct {
	// Anomaly configures the anomaly pass. Zero value means the
	// isolation_forest defaults.
	Anomaly anomaly.Config
	// Burst configures the burst pass. Zero value means the package
	// defaults.
	Burst burst.Config
	// MaxDaysGap is the merge distance in days. Raw detections this close
	// to the open group join it. Default 3.
	MaxDaysGap int
}

func (c *EntityConfig) applyDefaults() {
	if c.Anomaly.Method == "" {
		c.Anomaly.Method = anomaly.MethodIsolationForest
	}
	if c.MaxDaysGap == 0 {
		c.MaxDaysGap = 3
	}
}

// EntityDetector runs the single-entity detectors and merges their output.
// It holds no per-series state, so one instance may serve many entities
// concurrently.
type EntityDetector struct {
	cfg     EntityConfig
	anomaly *anomaly.Detector
	burst   *burst.Detector
	logger  *zap.Logger
}

// NewEntityDetector validates the config and builds the underlying
// detectors.
func NewEntityDetector(cfg EntityConfig, logger *zap.Logger) (*EntityDetector, error) {
	cfg.applyDefaults()
	if cfg.MaxDaysGap < 1 {
		return nil, fmt.Errorf("%w: max days gap %d must be >= 1", timeseries.ErrInvalidParameter, cfg.MaxDaysGap)
	}
	ad, err := anomaly.New(cfg.Anomaly)
	if err != nil {
		return nil, fmt.Errorf("entity detector: %w", err)
	}
	bd, err := burst.New(cfg.Burst)
	if err != nil {
		return nil, fmt.Errorf("entity detector: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityDetector{cfg: cfg, anomaly: ad, burst: bd, logger: logger}, nil
}

// Detect fetches the entity's series from the provider and merges all raw
// detections into combined events.
func (d *EntityDetector) Detect(ctx context.Context, p timeseries.Provider, entity string, from, to time.Time) ([]CombinedEvent, error) {
	s, err := p.Series(ctx, entity, from, to)
	if err != nil {
		return nil, err
	}
	return d.DetectSeries(s)
}

// DetectSeries merges anomaly, burst, and change-point detections for one
// already fetched series.
func (d *EntityDetector) DetectSeries(s *timeseries.EntityTimeSeries) ([]CombinedEvent, error) {
	if s == nil || s.IsEmpty() {
		return nil, nil
	}

	var raw []detection

	records, err := d.anomaly.Detect(s)
	if err != nil {
		d.logger.Warn("anomaly detection failed, skipping anomaly pass",
			zap.String("entity", s.Entity), zap.Error(err))
	} else {
		for _, r := range records {
			if !r.Flagged {
				continue
			}
			raw = append(raw, detection{
				date:        r.Date,
				value:       r.Value,
				score:       r.Score,
				method:      string(r.Method),
				description: fmt.Sprintf("anomalous mention volume %.0f (%s score %.2f)", r.Value, r.Method, r.Score),
			})
		}
	}

	for _, e := range d.burst.DetectEvents(s) {
		raw = append(raw, detection{
			date:        e.PeakDate,
			value:       e.PeakValue,
			score:       e.PeakScore,
			method:      "burst",
			description: fmt.Sprintf("mention burst peaking at %.0f over %d days", e.PeakValue, e.Duration),
		})
	}

	for _, r := range d.anomaly.DetectChangePoints(s) {
		if !r.Flagged {
			continue
		}
		raw = append(raw, detection{
			date:        r.Date,
			value:       r.Value,
			score:       r.Score,
			method:      string(anomaly.MethodChangePoint),
			description: fmt.Sprintf("mention level shift to %.0f (separation %.2f)", r.Value, r.Score),
		})
	}

	return mergeDetections(s.Entity, raw, d.cfg.MaxDaysGap), nil
}

// mergeDetections sorts raw detections by date and folds any detection
// within maxDaysGap of the open group into it. The group keeps the
// highest-scoring detection's date, value, and description, accumulates the
// distinct method tags, and scores as the mean of every member's score.
func mergeDetections(entity string, raw []detection, maxDaysGap int) []CombinedEvent {
	if len(raw) == 0 {
		return nil
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].date.Before(raw[j].date) })

	var out []CombinedEvent
	group := []detection{raw[0]}
	for _, det := range raw[1:] {
		last := group[len(group)-1].date
		if daysApart(last, det.date) <= maxDaysGap {
			group = append(group, det)
		} else {
			out = append(out, combine(entity, group))
			group = []detection{det}
		}
	}
	out = append(out, combine(entity, group))
	return out
}

func combine(entity string, group []detection) CombinedEvent {
	best := group[0]
	sum := 0.0
	seen := make(map[string]bool)
	var methods []string
	for _, det := range group {
		sum += det.score
		if det.score > best.score {
			best = det
		}
		if !seen[det.method] {
			seen[det.method] = true
			methods = append(methods, det.method)
		}
	}
	sort.Strings(methods)
	return CombinedEvent{
		ID:          uuid.NewString(),
		Entity:      entity,
		Date:        best.date,
		Value:       best.value,
		Score:       sum / float64(len(group)),
		Methods:     methods,
		Description: best.description,
	}
}

func daysApart(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
