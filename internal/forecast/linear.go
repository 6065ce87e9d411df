package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// LinearTrendForecaster extrapolates a least-squares line fit on the day
// index.
type LinearTrendForecaster struct{}

// NewLinearTrend creates the linear trend regressor.
func NewLinearTrend() *LinearTrendForecaster { return &LinearTrendForecaster{} }

func (l *LinearTrendForecaster) Name() string { return "linear_trend" }

// Forecast extrapolates the fitted line horizon days past the series end.
func (l *LinearTrendForecaster) Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d must be >= 1", timeseries.ErrInvalidParameter, horizon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := s.Values()
	if len(values) < 2 {
		return nil, fmt.Errorf("linear trend: %w: need 2 observations, have %d",
			timeseries.ErrInsufficientData, len(values))
	}

	slope, intercept := leastSquares(values)
	forecasts := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		forecasts[i] = intercept + slope*float64(len(values)+i)
	}
	return buildResult(s, l.Name(), forecasts), nil
}

// leastSquares returns (slope, intercept) of the ordinary least-squares fit
// against the 0-based index.
func leastSquares(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
