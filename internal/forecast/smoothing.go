package forecast

import (
	"context"
	"fmt"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Additive Holt-Winters (triple exponential smoothing) with weekly
// seasonality: level, trend, and a 7-day seasonal component updated per
// observation.

// HoltWintersForecaster is additive exponential smoothing with a weekly
// season.
type HoltWintersForecaster struct {
	Period int
	Alpha  float64 // level smoothing
	Beta   float64 // trend smoothing
	Gamma  float64 // seasonal smoothing
}

// NewHoltWinters creates the weekly additive smoother with the usual
// moderate smoothing constants.
func NewHoltWinters() *HoltWintersForecaster {
	return &HoltWintersForecaster{Period: 7, Alpha: 0.3, Beta: 0.1, Gamma: 0.2}
}

func (h *HoltWintersForecaster) Name() string { return "exponential_smoothing" }

// Forecast fits and predicts horizon days ahead. Needs at least two full
// seasonal periods of history.
func (h *HoltWintersForecaster) Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d must be >= 1", timeseries.ErrInvalidParameter, horizon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := s.Values()
	m := h.Period
	if len(values) < 2*m {
		return nil, fmt.Errorf("exponential smoothing: %w: need %d observations, have %d",
			timeseries.ErrInsufficientData, 2*m, len(values))
	}

	// initial level and trend from the first two seasons
	level := timeseries.Mean(values[:m])
	second := timeseries.Mean(values[m : 2*m])
	trend := (second - level) / float64(m)

	season := make([]float64, m)
	for i := 0; i < m; i++ {
		season[i] = values[i] - level
	}

	for t := m; t < len(values); t++ {
		idx := t % m
		prevLevel := level
		level = h.Alpha*(values[t]-season[idx]) + (1-h.Alpha)*(level+trend)
		trend = h.Beta*(level-prevLevel) + (1-h.Beta)*trend
		season[idx] = h.Gamma*(values[t]-level) + (1-h.Gamma)*season[idx]
	}

	forecasts := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		idx := (len(values) + i) % m
		forecasts[i] = level + float64(i+1)*trend + season[idx]
	}
	return buildResult(s, h.Name(), forecasts), nil
}
