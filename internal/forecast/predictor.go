package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// PredictedEvent is a forecast day expected to spike above threshold.
type PredictedEvent struct {
	Entity     string    `json:"entity"`
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
}

// PredictorConfig controls event extraction from a forecast.
type PredictorConfig struct {
	Threshold  float64 // minimum forecast value
	PeakWindow int     // neighbors checked on each side
}

// DefaultPredictorConfig uses a one-day peak window.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{Threshold: 3.0, PeakWindow: 1}
}

// PredictEvents keeps the forecast days whose value meets the threshold and
// strictly exceeds all neighbors within the peak window. Days too close to
// either edge to have a full window are never events.
func PredictEvents(points []Point, entity string, cfg PredictorConfig) ([]PredictedEvent, error) {
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold %v must be > 0", timeseries.ErrInvalidParameter, cfg.Threshold)
	}
	w := cfg.PeakWindow
	if w < 1 {
		w = 1
	}

	var events []PredictedEvent
	for i, p := range points {
		if p.Value < cfg.Threshold {
			continue
		}
		if i-w < 0 || i+w >= len(points) {
			continue
		}
		peak := true
		for d := 1; d <= w; d++ {
			if points[i-d].Value >= p.Value || points[i+d].Value >= p.Value {
				peak = false
				break
			}
		}
		if !peak {
			continue
		}
		events = append(events, PredictedEvent{
			Entity:     entity,
			Date:       p.Date,
			Value:      p.Value,
			Confidence: math.Min(1.0, p.Value/(2*cfg.Threshold)),
		})
	}
	return events, nil
}
