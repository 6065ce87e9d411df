package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Bootstrap ensemble of variance-reducing regression trees on lag features
// {1, 2, 3, 7}. Forecasting is recursive: each predicted day is appended to
// the history so later days can draw their lags from it.

var forecastLags = []int{1, 2, 3, 7}

// TreeEnsembleForecaster is a random-forest style regressor.
type TreeEnsembleForecaster struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// NewTreeEnsemble creates the default 50-tree regressor.
func NewTreeEnsemble() *TreeEnsembleForecaster {
	return &TreeEnsembleForecaster{Trees: 50, MaxDepth: 6, MinLeaf: 2}
}

func (t *TreeEnsembleForecaster) Name() string { return "tree_ensemble" }

// Forecast trains on the series' lag rows and predicts horizon days.
func (t *TreeEnsembleForecaster) Forecast(ctx context.Context, s *timeseries.EntityTimeSeries, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon %d must be >= 1", timeseries.ErrInvalidParameter, horizon)
	}
	values := s.Values()
	rows, targets := lagRows(values)
	if len(rows) < 5 {
		return nil, fmt.Errorf("tree ensemble: %w: %d training rows", timeseries.ErrInsufficientData, len(rows))
	}

	seed := t.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	trees := make([]*regNode, 0, t.Trees)
	for i := 0; i < t.Trees; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bi, bt := bootstrap(rows, targets, rng)
		trees = append(trees, growTree(bi, bt, 0, t.MaxDepth, t.MinLeaf, rng))
	}

	history := append([]float64(nil), values...)
	forecasts := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		row := lagRow(history)
		sum := 0.0
		for _, tree := range trees {
			sum += tree.predict(row)
		}
		pred := timeseries.Clamp(sum / float64(len(trees)))
		forecasts[h] = pred
		history = append(history, pred)
	}
	return buildResult(s, t.Name(), forecasts), nil
}

// lagRows builds (features, target) pairs for every index with full lag
// history.
func lagRows(values []float64) (rows [][]float64, targets []float64) {
	maxLag := forecastLags[len(forecastLags)-1]
	for i := maxLag; i < len(values); i++ {
		rows = append(rows, lagRow(values[:i]))
		targets = append(targets, values[i])
	}
	return rows, targets
}

// lagRow extracts the lag features for predicting the value right after the
// given history.
func lagRow(history []float64) []float64 {
	row := make([]float64, len(forecastLags))
	for k, lag := range forecastLags {
		row[k] = history[len(history)-lag]
	}
	return row
}

func bootstrap(rows [][]float64, targets []float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(rows)
	outR := make([][]float64, n)
	outT := make([]float64, n)
	for i := 0; i < n; i++ {
		j := rng.Intn(n)
		outR[i], outT[i] = rows[j], targets[j]
	}
	return outR, outT
}

type regNode struct {
	feature int
	split   float64
	left    *regNode
	right   *regNode
	value   float64
	leaf    bool
}

func growTree(rows [][]float64, targets []float64, depth, maxDepth, minLeaf int, rng *rand.Rand) *regNode {
	if depth >= maxDepth || len(rows) <= minLeaf || uniform(targets) {
		return &regNode{leaf: true, value: timeseries.Mean(targets)}
	}

	bestFeat, bestSplit, bestScore := -1, 0.0, math.Inf(1)
	// random feature subsample, forest style
	feats := rng.Perm(len(rows[0]))
	if len(feats) > 2 {
		feats = feats[:2]
	}
	for _, f := range feats {
		candidates := splitCandidates(rows, f)
		for _, c := range candidates {
			score := splitVariance(rows, targets, f, c)
			if score < bestScore {
				bestFeat, bestSplit, bestScore = f, c, score
			}
		}
	}
	if bestFeat < 0 {
		return &regNode{leaf: true, value: timeseries.Mean(targets)}
	}

	var lr, rr [][]float64
	var lt, rt []float64
	for i, row := range rows {
		if row[bestFeat] < bestSplit {
			lr, lt = append(lr, row), append(lt, targets[i])
		} else {
			rr, rt = append(rr, row), append(rt, targets[i])
		}
	}
	if len(lr) == 0 || len(rr) == 0 {
		return &regNode{leaf: true, value: timeseries.Mean(targets)}
	}
	return &regNode{
		feature: bestFeat,
		split:   bestSplit,
		left:    growTree(lr, lt, depth+1, maxDepth, minLeaf, rng),
		right:   growTree(rr, rt, depth+1, maxDepth, minLeaf, rng),
	}
}

func (n *regNode) predict(row []float64) float64 {
	if n.leaf {
		return n.value
	}
	if row[n.feature] < n.split {
		return n.left.predict(row)
	}
	return n.right.predict(row)
}

// splitCandidates returns the midpoints between distinct sorted feature
// values.
func splitCandidates(rows [][]float64, feature int) []float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		vals = append(vals, r[feature])
	}
	sort.Float64s(vals)
	var out []float64
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1] {
			out = append(out, (vals[i]+vals[i-1])/2)
		}
	}
	return out
}

// splitVariance is the size-weighted variance of the two child partitions.
func splitVariance(rows [][]float64, targets []float64, feature int, split float64) float64 {
	var lt, rt []float64
	for i, row := range rows {
		if row[feature] < split {
			lt = append(lt, targets[i])
		} else {
			rt = append(rt, targets[i])
		}
	}
	if len(lt) == 0 || len(rt) == 0 {
		return math.Inf(1)
	}
	n := float64(len(targets))
	return variance(lt)*float64(len(lt))/n + variance(rt)*float64(len(rt))/n
}

func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := timeseries.Mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(values))
}

func uniform(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
