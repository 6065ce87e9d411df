package forecast

import (
	"context"
	"fmt"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// ARIMA(p,1,0): first-difference the series for stationarity, fit the AR
// coefficients on the differenced values with Yule-Walker (solved by
// Levinson-Durbin recursion), forecast recursively, and integrate back to
// the original scale.

// ARIMAForecaster is an autoregressive integrated model with fixed order
// (p, 1, 0).
type ARIMAForecaster struct {
	P int
}

// NewARIMA creates an ARIMA(5,1,0) forecaster, the fixed ensemble order.
func NewARIMA() *ARIMAForecaster { return &ARIMAForecaster{P: 5} }

func (a *ARIMAForecaster) Name() string { return fmt.Sprintf("arima_%d_1_0", a.P) }

// Forecast fits and predicts horizon days ahead.
func (a *ARIMAForecaster) Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d must be >= 1", timeseries.ErrInvalidParameter, horizon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := s.Values()
	// need enough differenced observations to estimate p AR terms
	if len(values) < a.P+11 {
		return nil, fmt.Errorf("arima: %w: %d observations for AR(%d)", timeseries.ErrInsufficientData, len(values), a.P)
	}

	diff := difference(values)
	phi, intercept := fitAR(diff, a.P)

	// forecast the differenced series; future shocks have expectation zero
	ext := make([]float64, len(diff), len(diff)+horizon)
	copy(ext, diff)
	for h := 0; h < horizon; h++ {
		t := len(ext)
		pred := intercept
		for i := 0; i < a.P; i++ {
			pred += phi[i] * (ext[t-i-1] - intercept)
		}
		ext = append(ext, pred)
	}

	// integrate back to the original scale
	forecasts := make([]float64, horizon)
	level := values[len(values)-1]
	for i := 0; i < horizon; i++ {
		level += ext[len(diff)+i]
		forecasts[i] = level
	}
	return buildResult(s, a.Name(), forecasts), nil
}

func difference(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// fitAR estimates AR coefficients with Yule-Walker and returns them with
// the series mean as intercept.
func fitAR(values []float64, p int) (phi []float64, intercept float64) {
	intercept = timeseries.Mean(values)
	acf := timeseries.ACF(values, p)
	phi = levinsonDurbin(acf, p)
	// keep the recursion stable: bound each coefficient inside the unit
	// interval the way goarima constrains its CSS updates
	for i := range phi {
		if phi[i] > 0.99 {
			phi[i] = 0.99
		} else if phi[i] < -0.99 {
			phi[i] = -0.99
		}
	}
	return phi, intercept
}

// levinsonDurbin solves the Yule-Walker equations for the AR coefficients.
func levinsonDurbin(acf []float64, order int) []float64 {
	phi := make([]float64, order)
	if order == 0 || len(acf) <= order {
		return phi
	}
	phi[0] = acf[1]
	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = phi[j] - lambda*phi[i-1-j]
		}
		next[i] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
	}
	return phi
}
