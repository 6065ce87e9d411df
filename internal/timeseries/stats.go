package timeseries

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Rolling statistics and descriptive summaries shared by the anomaly and
// burst detectors. Burst scoring and anomaly baselines both go through
// RollingBaseline so the two detectors cannot drift apart.

// Summary holds descriptive statistics for a value slice.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	IQR    float64 `json:"iqr"`
	Count  int     `json:"count"`
}

// Summarize computes descriptive statistics. An empty input yields the zero
// Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := stat.Mean(values, nil)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	return Summary{
		Mean:   mean,
		Median: Quantile(sorted, 0.5),
		StdDev: math.Sqrt(stat.PopVariance(values, nil)),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     q1,
		Q3:     q3,
		IQR:    q3 - q1,
		Count:  len(values),
	}
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Std returns the population standard deviation, 0 for fewer than 2 values.
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(values, nil))
}

// Quantile returns the linearly interpolated quantile p in [0,1] of sorted
// ascending data.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	w := rank - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// RollingBaseline computes, for every index i, the mean and population
// standard deviation of the values in the trailing window [i-window, i)
// (the current value is excluded so a spike cannot mask itself). For i == 0
// the baseline is the value itself with zero spread; earlier indices with a
// short history use whatever trailing values exist.
func RollingBaseline(values []float64, window int) (means, stds []float64) {
	n := len(values)
	means = make([]float64, n)
	stds = make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		if i == 0 {
			means[0] = values[0]
			continue
		}
		win := values[lo:i]
		means[i] = Mean(win)
		stds[i] = Std(win)
	}
	return means, stds
}

// RollingCentered computes the mean and population standard deviation over
// a centered window of the given size around each index, shrinking at the
// edges. Used for feature construction where look-ahead is acceptable.
func RollingCentered(values []float64, window int) (means, stds []float64) {
	n := len(values)
	means = make([]float64, n)
	stds = make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		win := values[lo:hi]
		means[i] = Mean(win)
		stds[i] = Std(win)
	}
	return means, stds
}

// ACF returns the autocorrelation function up to maxLag inclusive.
// acf[0] is always 1 for a series with nonzero variance.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	acf := make([]float64, maxLag+1)
	if n == 0 {
		return acf
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	if variance == 0 {
		return acf
	}
	acf[0] = 1
	for lag := 1; lag <= maxLag && lag < n; lag++ {
		cov := 0.0
		for i := lag; i < n; i++ {
			cov += (values[i] - mean) * (values[i-lag] - mean)
		}
		acf[lag] = cov / variance
	}
	return acf
}

// Clamp returns v bounded below by 0. Mention counts and forecasts are
// never negative.
func Clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
