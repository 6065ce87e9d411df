package correlation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Package correlation measures pairwise and lagged relationships between
// entity mention series and lifts them into correlation and causal networks.
//
// "Causal" here means an inferred directed lead/lag association, not proof
// of causation: if entity A's series at time t correlates best with entity
// B's at time t+k (k > 0), A is reported as leading B by k days.

// Method selects the correlation coefficient.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// Result is a static pairwise correlation.
type Result struct {
	EntityA     string  `json:"entity_a"`
	EntityB     string  `json:"entity_b"`
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
	N           int     `json:"n"`
}

// LagPoint is one point of a lagged-correlation curve.
type LagPoint struct {
	Lag         int     `json:"lag"`
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
}

// LaggedResult is the full lag curve plus the best lag by |correlation|.
// A positive BestLag means EntityA leads EntityB by that many days.
type LaggedResult struct {
	EntityA         string     `json:"entity_a"`
	EntityB         string     `json:"entity_b"`
	Curve           []LagPoint `json:"curve"`
	BestLag         int        `json:"best_lag"`
	BestCorrelation float64    `json:"best_correlation"`
	BestPValue      float64    `json:"best_p_value"`
	Direction       string     `json:"direction"` // a_leads | b_leads | synchronous
}

// Matrix is a symmetric correlation matrix over a set of entities.
type Matrix struct {
	Entities []string    `json:"entities"`
	R        [][]float64 `json:"r"`
	P        [][]float64 `json:"p"`
}

// Config parameterizes an Analyzer.
type Config struct {
	Method Method
	// MinCorrelation is the |r| floor for network edges and causal
	// relationships. Default 0.5.
	MinCorrelation float64
	// MinDataPoints is the minimum aligned observations required before a
	// correlation is computed at all; below it the pair yields exactly
	// (0, 1.0) — no evidence, not an error. Default 10.
	MinDataPoints int
	// MaxLag bounds the lag search in days. Default 7.
	MaxLag int
	// PThreshold is the significance cutoff when significance filtering is
	// enabled. Default 0.05.
	PThreshold float64
}

func (c *Config) applyDefaults() {
	if c.Method == "" {
		c.Method = Pearson
	}
	if c.MinCorrelation == 0 {
		c.MinCorrelation = 0.5
	}
	if c.MinDataPoints == 0 {
		c.MinDataPoints = 10
	}
	if c.MaxLag == 0 {
		c.MaxLag = 7
	}
	if c.PThreshold == 0 {
		c.PThreshold = 0.05
	}
}

func (c *Config) validate() error {
	if c.Method != Pearson && c.Method != Spearman {
		return fmt.Errorf("%w: unknown correlation method %q", timeseries.ErrInvalidParameter, c.Method)
	}
	if c.MinDataPoints < 3 {
		return fmt.Errorf("%w: min data points %d must be >= 3", timeseries.ErrInvalidParameter, c.MinDataPoints)
	}
	if c.MaxLag < 1 {
		return fmt.Errorf("%w: max lag %d must be >= 1", timeseries.ErrInvalidParameter, c.MaxLag)
	}
	if c.MinCorrelation < 0 || c.MinCorrelation > 1 {
		return fmt.Errorf("%w: min correlation %v must be in [0,1]", timeseries.ErrInvalidParameter, c.MinCorrelation)
	}
	if c.PThreshold <= 0 || c.PThreshold > 1 {
		return fmt.Errorf("%w: p threshold %v must be in (0,1]", timeseries.ErrInvalidParameter, c.PThreshold)
	}
	return nil
}

// Analyzer computes correlations between entity series.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer, failing fast on invalid parameters.
func New(cfg Config) (*Analyzer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg}, nil
}

// Correlate aligns two series by calendar date, drops days missing from
// either, and returns the correlation with its two-sided p-value. Fewer
// than MinDataPoints aligned days yields exactly (0, 1.0).
func (a *Analyzer) Correlate(x, y *timeseries.EntityTimeSeries) Result {
	xs, ys := alignByDate(x, y)
	r, p := a.coefficient(xs, ys)
	return Result{
		EntityA:     x.Entity,
		EntityB:     y.Entity,
		Correlation: r,
		PValue:      p,
		N:           len(xs),
	}
}

// CorrelateLagged recomputes the correlation at every integer lag in
// [-maxLag, maxLag], shifting y relative to x, and reports the lag with
// maximum |correlation| as the best lag. Zero maxLag uses the configured
// default.
func (a *Analyzer) CorrelateLagged(x, y *timeseries.EntityTimeSeries, maxLag int) LaggedResult {
	if maxLag <= 0 {
		maxLag = a.cfg.MaxLag
	}
	xs, ys := alignByDate(x, y)

	res := LaggedResult{EntityA: x.Entity, EntityB: y.Entity, Direction: "synchronous"}
	bestAbs := -1.0
	for lag := -maxLag; lag <= maxLag; lag++ {
		xw, yw := shift(xs, ys, lag)
		r, p := a.coefficient(xw, yw)
		res.Curve = append(res.Curve, LagPoint{Lag: lag, Correlation: r, PValue: p})
		if math.Abs(r) > bestAbs {
			bestAbs = math.Abs(r)
			res.BestLag = lag
			res.BestCorrelation = r
			res.BestPValue = p
		}
	}
	if res.BestLag > 0 {
		res.Direction = "a_leads"
	} else if res.BestLag < 0 {
		res.Direction = "b_leads"
	}
	return res
}

// CorrelationMatrix builds the symmetric N×N correlation matrix with unit
// diagonal and matching p-values across a set of entity series.
func (a *Analyzer) CorrelationMatrix(series []*timeseries.EntityTimeSeries) *Matrix {
	n := len(series)
	m := &Matrix{
		Entities: make([]string, n),
		R:        make([][]float64, n),
		P:        make([][]float64, n),
	}
	for i, s := range series {
		m.Entities[i] = s.Entity
		m.R[i] = make([]float64, n)
		m.P[i] = make([]float64, n)
		m.R[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			res := a.Correlate(series[i], series[j])
			m.R[i][j], m.R[j][i] = res.Correlation, res.Correlation
			m.P[i][j], m.P[j][i] = res.PValue, res.PValue
		}
	}
	return m
}

// CorrelatedPairs returns the pairs whose |correlation| clears the
// configured floor, strongest first.
func (a *Analyzer) CorrelatedPairs(series []*timeseries.EntityTimeSeries) []Result {
	var out []Result
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			res := a.Correlate(series[i], series[j])
			if math.Abs(res.Correlation) >= a.cfg.MinCorrelation {
				out = append(out, res)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

// coefficient computes the configured correlation and its p-value over
// aligned values. Under MinDataPoints it returns the no-evidence (0, 1.0).
func (a *Analyzer) coefficient(xs, ys []float64) (r, p float64) {
	if len(xs) < a.cfg.MinDataPoints {
		return 0, 1.0
	}
	if a.cfg.Method == Spearman {
		xs, ys = ranks(xs), ranks(ys)
	}
	r = stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, 1.0
	}
	// clamp float drift out of [-1,1]
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, pValue(r, len(xs))
}

// pValue is the two-sided t-test p-value for a correlation over n samples.
func pValue(r float64, n int) float64 {
	if n < 3 {
		return 1.0
	}
	if math.Abs(r) >= 1-1e-12 {
		return 0
	}
	t := math.Abs(r) * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * (1 - dist.CDF(t))
}

// alignByDate intersects two series on calendar date.
func alignByDate(x, y *timeseries.EntityTimeSeries) (xs, ys []float64) {
	if x == nil || y == nil {
		return nil, nil
	}
	byDate := make(map[time.Time]float64, y.Len())
	for _, p := range y.Points {
		byDate[p.Date] = p.Count
	}
	for _, p := range x.Points {
		if v, ok := byDate[p.Date]; ok {
			xs = append(xs, p.Count)
			ys = append(ys, v)
		}
	}
	return xs, ys
}

// shift offsets y against x by lag days: positive lag pairs x[t] with
// y[t+lag], so a positive-lag correlation means x leads y.
func shift(xs, ys []float64, lag int) ([]float64, []float64) {
	n := len(xs)
	switch {
	case lag == 0:
		return xs, ys
	case lag > 0:
		if lag >= n {
			return nil, nil
		}
		return xs[:n-lag], ys[lag:]
	default:
		k := -lag
		if k >= n {
			return nil, nil
		}
		return xs[k:], ys[:n-k]
	}
}

// ranks converts values to average ranks for Spearman correlation.
func ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// ties share the average rank
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
