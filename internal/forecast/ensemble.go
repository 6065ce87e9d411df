package forecast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Ensemble runs every registered strategy and averages their forecasts.
type Ensemble struct {
	Strategies []Forecaster
	Timeout    time.Duration // per-strategy budget, 0 disables
	Logger     *zap.Logger
}

// EnsembleResult carries the combined forecast plus each contributing
// strategy's own forecast.
type EnsembleResult struct {
	Entity    string             `json:"entity"`
	Points    []Point            `json:"points"`
	PerModel  map[string]*Result `json:"per_model"`
	Succeeded []string           `json:"succeeded"`
	Failed    []string           `json:"failed"`
}

// NewEnsemble wires the default five strategies.
func NewEnsemble(logger *zap.Logger) *Ensemble {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ensemble{
		Strategies: []Forecaster{
			NewARIMA(),
			NewHoltWinters(),
			NewLinearTrend(),
			NewTreeEnsemble(),
			NewSVR(),
		},
		Timeout: 30 * time.Second,
		Logger:  logger,
	}
}

// Forecast runs all strategies and averages per date over exactly the
// strategies that produced that date. Strategies that error are skipped and
// logged; the ensemble errors only when every strategy fails. That error is
// the "prediction unavailable" outcome: callers treat it as having no
// forecast rather than as a failed analysis.
func (e *Ensemble) Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*EnsembleResult, error) {
	if s == nil || s.IsEmpty() {
		return nil, fmt.Errorf("ensemble: %w: empty series", timeseries.ErrInsufficientData)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d must be >= 1", timeseries.ErrInvalidParameter, horizon)
	}

	out := &EnsembleResult{
		Entity:   s.Entity,
		PerModel: make(map[string]*Result, len(e.Strategies)),
	}
	sums := make([]float64, horizon)
	counts := make([]int, horizon)

	for _, strategy := range e.Strategies {
		res, err := e.runOne(ctx, strategy, s, horizon)
		if err != nil {
			e.Logger.Warn("forecast strategy failed",
				zap.String("entity", s.Entity),
				zap.String("model", strategy.Name()),
				zap.Error(err))
			out.Failed = append(out.Failed, strategy.Name())
			continue
		}
		out.PerModel[strategy.Name()] = res
		out.Succeeded = append(out.Succeeded, strategy.Name())
		for i, p := range res.Points {
			if i >= horizon {
				break
			}
			sums[i] += p.Value
			counts[i]++
		}
	}
	if len(out.Succeeded) == 0 {
		return nil, fmt.Errorf("ensemble: all %d strategies failed for %q", len(e.Strategies), s.Entity)
	}

	dates := futureDates(s, horizon)
	out.Points = make([]Point, horizon)
	for i := range out.Points {
		v := 0.0
		if counts[i] > 0 {
			v = sums[i] / float64(counts[i])
		}
		out.Points[i] = Point{Date: dates[i], Value: timeseries.Clamp(v)}
	}
	return out, nil
}

func (e *Ensemble) runOne(ctx context.Context, f Forecaster, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return f.Forecast(ctx, s, horizon)
}
