package forecast

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Kernel ridge regression with an RBF kernel over the same lag features the
// tree ensemble uses. The least-squares formulation solves
// (K + lambda*I) alpha = y directly instead of running an SMO loop.

// SVRForecaster is an RBF support vector regressor in least-squares form.
type SVRForecaster struct {
	Gamma  float64 // RBF width, <= 0 means 1/(d * var) from training data
	Lambda float64 // ridge term
}

// NewSVR creates the default regressor.
func NewSVR() *SVRForecaster {
	return &SVRForecaster{Lambda: 1.0}
}

func (f *SVRForecaster) Name() string { return "svr_rbf" }

// Forecast trains on the series' lag rows and predicts horizon days
// recursively.
func (f *SVRForecaster) Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d must be >= 1", timeseries.ErrInvalidParameter, horizon)
	}
	values := s.Values()
	rows, targets := lagRows(values)
	if len(rows) < 5 {
		return nil, fmt.Errorf("svr: %w: %d training rows", timeseries.ErrInsufficientData, len(rows))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gamma := f.Gamma
	if gamma <= 0 {
		gamma = defaultGamma(rows)
	}
	lambda := f.Lambda
	if lambda <= 0 {
		lambda = 1.0
	}

	n := len(rows)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rbf(rows[i], rows[j], gamma)
			if i == j {
				v += lambda
			}
			k.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(k) {
		return nil, fmt.Errorf("svr: kernel matrix is not positive definite")
	}
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, mat.NewVecDense(n, targets)); err != nil {
		return nil, fmt.Errorf("svr: solve: %w", err)
	}

	history := append([]float64(nil), values...)
	forecasts := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		row := lagRow(history)
		pred := 0.0
		for i := 0; i < n; i++ {
			pred += alpha.AtVec(i) * rbf(rows[i], row, gamma)
		}
		pred = timeseries.Clamp(pred)
		forecasts[h] = pred
		history = append(history, pred)
	}
	return buildResult(s, f.Name(), forecasts), nil
}

func rbf(a, b []float64, gamma float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Exp(-gamma * sum)
}

// defaultGamma mirrors the usual "scale" heuristic, 1 over feature count
// times pooled variance.
func defaultGamma(rows [][]float64) float64 {
	d := len(rows[0])
	var all []float64
	for _, r := range rows {
		all = append(all, r...)
	}
	v := variance(all)
	if v <= 0 {
		return 1.0
	}
	return 1.0 / (float64(d) * v)
}
