package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

func series(t *testing.T, values ...float64) *timeseries.EntityTimeSeries {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Date: start.AddDate(0, 0, i), Count: v}
	}
	return &timeseries.EntityTimeSeries{Entity: "acme", Points: points}
}

func TestLinearTrendExtrapolatesExactLine(t *testing.T) {
	// y = 2i + 1 fits perfectly, so the forecast must continue the line
	values := make([]float64, 10)
	for i := range values {
		values[i] = 2*float64(i) + 1
	}
	s := series(t, values...)

	res, err := NewLinearTrend().Forecast(context.Background(), s, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Model != "linear_trend" {
		t.Fatalf("model = %q", res.Model)
	}
	for i, want := range []float64{21, 23, 25} {
		if got := res.Points[i].Value; math.Abs(got-want) > 1e-9 {
			t.Errorf("point %d = %v, want %v", i, got, want)
		}
		wantDate := s.Points[len(s.Points)-1].Date.AddDate(0, 0, i+1)
		if !res.Points[i].Date.Equal(wantDate) {
			t.Errorf("point %d date = %v, want %v", i, res.Points[i].Date, wantDate)
		}
	}
}

func TestLinearTrendClampsNegativeForecasts(t *testing.T) {
	s := series(t, 10, 8, 6, 4, 2)
	res, err := NewLinearTrend().Forecast(context.Background(), s, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range res.Points {
		if p.Value < 0 {
			t.Errorf("point %d = %v, forecasts must be clamped to >= 0", i, p.Value)
		}
	}
}

func TestHoltWintersContinuesWeeklyPattern(t *testing.T) {
	// a perfectly repeating weekly pattern with no trend must be carried
	// forward unchanged: level and trend stay fixed and the seasonal
	// component reproduces the pattern
	pattern := []float64{1, 2, 3, 4, 5, 6, 7}
	values := make([]float64, 0, 28)
	for i := 0; i < 4; i++ {
		values = append(values, pattern...)
	}
	s := series(t, values...)

	res, err := NewHoltWinters().Forecast(context.Background(), s, 7)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 7; i++ {
		want := pattern[i]
		if got := res.Points[i].Value; math.Abs(got-want) > 1e-9 {
			t.Errorf("point %d = %v, want %v", i, got, want)
		}
	}
}

func TestARIMAContinuesLinearTrend(t *testing.T) {
	// first differences of a straight line are constant, so the AR terms
	// vanish and the intercept carries the slope forward exactly
	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(i)
	}
	s := series(t, values...)

	res, err := NewARIMA().Forecast(context.Background(), s, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{20, 21, 22} {
		if got := res.Points[i].Value; math.Abs(got-want) > 1e-6 {
			t.Errorf("point %d = %v, want %v", i, got, want)
		}
	}
}

func TestTreeEnsemblePredictsConstantSeries(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 5
	}
	s := series(t, values...)

	f := NewTreeEnsemble()
	f.Seed = 1
	res, err := f.Forecast(context.Background(), s, 5)
	if err != nil {
		t.Fatal(err)
	}
	// every training target is 5, so every leaf is 5
	for i, p := range res.Points {
		if math.Abs(p.Value-5) > 1e-9 {
			t.Errorf("point %d = %v, want 5", i, p.Value)
		}
	}
}

func TestSVRStaysNearConstantSeries(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 5
	}
	s := series(t, values...)

	res, err := NewSVR().Forecast(context.Background(), s, 5)
	if err != nil {
		t.Fatal(err)
	}
	// ridge shrinkage pulls predictions slightly below the constant but
	// never outside (0, 5]
	for i, p := range res.Points {
		if p.Value <= 0 || p.Value > 5+1e-9 {
			t.Errorf("point %d = %v, want within (0, 5]", i, p.Value)
		}
	}
}

func TestStrategiesRejectShortSeries(t *testing.T) {
	short := series(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	for _, f := range []Forecaster{NewARIMA(), NewHoltWinters(), NewTreeEnsemble(), NewSVR()} {
		_, err := f.Forecast(context.Background(), short, 3)
		if !errors.Is(err, timeseries.ErrInsufficientData) {
			t.Errorf("%s: err = %v, want ErrInsufficientData", f.Name(), err)
		}
	}
}

func TestStrategiesRejectBadHorizon(t *testing.T) {
	s := series(t, 1, 2, 3)
	for _, f := range []Forecaster{NewARIMA(), NewHoltWinters(), NewLinearTrend(), NewTreeEnsemble(), NewSVR()} {
		_, err := f.Forecast(context.Background(), s, 0)
		if !errors.Is(err, timeseries.ErrInvalidParameter) {
			t.Errorf("%s: err = %v, want ErrInvalidParameter", f.Name(), err)
		}
	}
}

// fixedForecaster always returns the same value for every horizon day.
type fixedForecaster struct {
	name  string
	value float64
}

func (f fixedForecaster) Name() string { return f.name }

func (f fixedForecaster) Forecast(_ context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	values := make([]float64, horizon)
	for i := range values {
		values[i] = f.value
	}
	return buildResult(s, f.name, values), nil
}

// brokenForecaster always fails.
type brokenForecaster struct{}

func (brokenForecaster) Name() string { return "broken" }

func (brokenForecaster) Forecast(context.Context, *timeseries.EntityTimeSeries, int) (*Result, error) {
	return nil, errors.New("model blew up")
}

func TestEnsembleAveragesOverStrategies(t *testing.T) {
	e := &Ensemble{Strategies: []Forecaster{
		fixedForecaster{name: "low", value: 2},
		fixedForecaster{name: "high", value: 4},
	}}
	e.Logger = zap.NewNop()

	res, err := e.Forecast(context.Background(), series(t, 1, 2, 3), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Succeeded) != 2 || len(res.Failed) != 0 {
		t.Fatalf("succeeded = %v, failed = %v", res.Succeeded, res.Failed)
	}
	for i, p := range res.Points {
		if math.Abs(p.Value-3) > 1e-9 {
			t.Errorf("point %d = %v, want 3", i, p.Value)
		}
	}
	if len(res.PerModel) != 2 {
		t.Fatalf("per-model forecasts = %d, want 2", len(res.PerModel))
	}
}

func TestEnsembleToleratesStrategyFailure(t *testing.T) {
	e := &Ensemble{Strategies: []Forecaster{
		brokenForecaster{},
		fixedForecaster{name: "steady", value: 4},
	}}
	e.Logger = zap.NewNop()

	res, err := e.Forecast(context.Background(), series(t, 1, 2, 3), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "broken" {
		t.Fatalf("failed = %v", res.Failed)
	}
	// the average covers only the surviving strategy
	for i, p := range res.Points {
		if math.Abs(p.Value-4) > 1e-9 {
			t.Errorf("point %d = %v, want 4", i, p.Value)
		}
	}
}

func TestEnsembleFailsOnlyWhenEveryStrategyFails(t *testing.T) {
	e := &Ensemble{Strategies: []Forecaster{brokenForecaster{}, brokenForecaster{}}}
	e.Logger = zap.NewNop()

	_, err := e.Forecast(context.Background(), series(t, 1, 2, 3), 3)
	if err == nil {
		t.Fatal("expected error when all strategies fail")
	}
}

func TestEnsembleDefaultStrategiesAllSucceed(t *testing.T) {
	// a trending weekly pattern long enough for every model
	values := make([]float64, 42)
	for i := range values {
		values[i] = 10 + 0.5*float64(i) + 3*float64(i%7)
	}
	s := series(t, values...)

	res, err := NewEnsemble(nil).Forecast(context.Background(), s, 14)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Succeeded) != 5 {
		t.Fatalf("succeeded = %v, want all 5 strategies", res.Succeeded)
	}
	if len(res.Points) != 14 {
		t.Fatalf("points = %d, want 14", len(res.Points))
	}
	for i, p := range res.Points {
		if p.Value < 0 || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			t.Errorf("point %d = %v", i, p.Value)
		}
	}
}

func TestPredictEventsPicksLocalPeakAboveThreshold(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Date: start, Value: 2},
		{Date: start.AddDate(0, 0, 1), Value: 5},
		{Date: start.AddDate(0, 0, 2), Value: 4},
	}

	events, err := PredictEvents(points, "acme", PredictorConfig{Threshold: 3, PeakWindow: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if !ev.Date.Equal(points[1].Date) {
		t.Errorf("date = %v, want %v", ev.Date, points[1].Date)
	}
	if ev.Entity != "acme" || ev.Value != 5 {
		t.Errorf("event = %+v", ev)
	}
	if want := 5.0 / 6.0; math.Abs(ev.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", ev.Confidence, want)
	}
}

func TestPredictEventsSkipsEdgeDays(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Date: start, Value: 9},
		{Date: start.AddDate(0, 0, 1), Value: 1},
		{Date: start.AddDate(0, 0, 2), Value: 9},
	}

	events, err := PredictEvents(points, "acme", DefaultPredictorConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %v, edge days must never be events", events)
	}
}

func TestPredictEventsRequiresStrictPeak(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Date: start, Value: 1},
		{Date: start.AddDate(0, 0, 1), Value: 5},
		{Date: start.AddDate(0, 0, 2), Value: 5},
		{Date: start.AddDate(0, 0, 3), Value: 1},
	}

	events, err := PredictEvents(points, "acme", DefaultPredictorConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %v, a plateau is not a peak", events)
	}
}

func TestPredictEventsConfidenceCapsAtOne(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Date: start, Value: 1},
		{Date: start.AddDate(0, 0, 1), Value: 100},
		{Date: start.AddDate(0, 0, 2), Value: 1},
	}

	events, err := PredictEvents(points, "acme", PredictorConfig{Threshold: 3, PeakWindow: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Confidence != 1.0 {
		t.Fatalf("events = %+v, want one event with confidence 1", events)
	}
}

func TestPredictEventsRejectsBadThreshold(t *testing.T) {
	_, err := PredictEvents(nil, "acme", PredictorConfig{Threshold: 0})
	if !errors.Is(err, timeseries.ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}
