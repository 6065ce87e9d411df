package forecast

import (
	"context"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Package forecast predicts future mention volume with five independent
// strategies and an averaging ensemble, and derives predicted events from
// local peaks in the ensemble forecast.
//
// Every strategy consumes the same historical series and a horizon in days
// and returns a date→value forecast clamped to >= 0, or an error. Strategy
// failures are isolated: the ensemble averages over exactly the strategies
// that produced a value for each date.

// Point is one forecast day.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Result is one strategy's forecast for one entity.
type Result struct {
	Entity string  `json:"entity"`
	Model  string  `json:"model"`
	Points []Point `json:"points"`
}

// Forecaster is a single forecasting strategy.
type Forecaster interface {
	Name() string
	Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error)
}

// futureDates returns the horizon days immediately after the series' last
// day.
func futureDates(s *timeseries.EntityTimeSeries, horizon int) []time.Time {
	last := s.Points[s.Len()-1].Date
	out := make([]time.Time, horizon)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}

// buildResult pairs future dates with clamped values.
func buildResult(s *timeseries.EntityTimeSeries, model string, values []float64) *Result {
	dates := futureDates(s, len(values))
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Date: dates[i], Value: timeseries.Clamp(v)}
	}
	return &Result{Entity: s.Entity, Model: model, Points: points}
}
