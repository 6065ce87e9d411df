package anomaly

import (
	"math"
	"sort"
)

// One-class SVM with an RBF kernel, estimated with uniform support weights:
// the decision value of a row is its mean kernel similarity to the training
// set, and the offset is the nu-quantile of the training decisions. Rows
// whose decision falls below the offset are outliers. This is the spherical
// (SVDD-style) special case, which avoids a quadratic-programming solver
// while keeping the kernel boundary semantics.

// SVMConfig parameterizes a OneClassSVM.
type SVMConfig struct {
	// Nu bounds the fraction of training rows treated as outliers.
	// Default 0.1.
	Nu float64
	// Gamma is the RBF kernel width. Zero means 1/(d·var), the scikit
	// "scale" heuristic.
	Gamma float64
}

// OneClassSVM separates the bulk of the training rows from the origin in
// RBF feature space.
type OneClassSVM struct {
	cfg    SVMConfig
	train  [][]float64
	gamma  float64
	offset float64
}

// NewOneClassSVM creates an unfitted model.
func NewOneClassSVM(cfg SVMConfig) *OneClassSVM {
	if cfg.Nu == 0 {
		cfg.Nu = 0.1
	}
	return &OneClassSVM{cfg: cfg}
}

// Fit stores the training rows and computes the decision offset.
func (m *OneClassSVM) Fit(features [][]float64) error {
	m.train = features
	if len(features) == 0 {
		return nil
	}
	m.gamma = m.cfg.Gamma
	if m.gamma == 0 {
		m.gamma = scaleGamma(features)
	}

	decisions := make([]float64, len(features))
	for i, row := range features {
		decisions[i] = m.decision(row)
	}
	sort.Float64s(decisions)
	rank := int(m.cfg.Nu * float64(len(decisions)))
	if rank >= len(decisions) {
		rank = len(decisions) - 1
	}
	m.offset = decisions[rank]
	return nil
}

// Score returns each row's anomaly score (how far its decision value falls
// below the offset, in offset units) and outlier flag.
func (m *OneClassSVM) Score(features [][]float64) ([]float64, []bool) {
	scores := make([]float64, len(features))
	flags := make([]bool, len(features))
	if len(m.train) == 0 {
		return scores, flags
	}
	for i, row := range features {
		dec := m.decision(row)
		margin := m.offset - dec
		if margin > 0 {
			if m.offset > 0 {
				scores[i] = margin / m.offset
			} else {
				scores[i] = margin
			}
			flags[i] = true
		}
	}
	return scores, flags
}

func (m *OneClassSVM) decision(row []float64) float64 {
	sum := 0.0
	for _, t := range m.train {
		sum += math.Exp(-m.gamma * squaredDistance(row, t))
	}
	return sum / float64(len(m.train))
}

// scaleGamma mirrors the "scale" heuristic: 1 / (n_features * variance).
func scaleGamma(features [][]float64) float64 {
	d := len(features[0])
	n := 0
	mean := 0.0
	for _, row := range features {
		for _, v := range row {
			mean += v
			n++
		}
	}
	mean /= float64(n)
	variance := 0.0
	for _, row := range features {
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
	}
	variance /= float64(n)
	if variance == 0 {
		return 1
	}
	return 1 / (float64(d) * variance)
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
