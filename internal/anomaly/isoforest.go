package anomaly

import (
	"math"
	"math/rand"
	"time"
)

// Isolation forest over feature rows. Anomalous rows are isolated in fewer
// random splits, giving shorter average path lengths and scores near 1.

// ForestConfig parameterizes an IsolationForest.
type ForestConfig struct {
	Trees         int     // default 100
	SubSampleSize int     // default 256
	MaxDepth      int     // default ceil(log2(SubSampleSize))
	ScoreCutoff   float64 // flag threshold on the [0,1] score, default 0.6
	Seed          int64   // zero means time-based
}

type isoNode struct {
	feature float64 // split value; index stored separately to keep the node small
	index   int
	left    *isoNode
	right   *isoNode
	size    int
	leaf    bool
}

// IsolationForest is an ensemble of randomly built isolation trees.
type IsolationForest struct {
	cfg   ForestConfig
	trees []*isoNode
	rng   *rand.Rand
}

// NewIsolationForest creates an unfitted forest.
func NewIsolationForest(cfg ForestConfig) *IsolationForest {
	if cfg.Trees == 0 {
		cfg.Trees = 100
	}
	if cfg.SubSampleSize == 0 {
		cfg.SubSampleSize = 256
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = int(math.Ceil(math.Log2(float64(cfg.SubSampleSize))))
	}
	if cfg.ScoreCutoff == 0 {
		cfg.ScoreCutoff = 0.6
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &IsolationForest{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Fit builds the ensemble from the feature rows.
func (f *IsolationForest) Fit(features [][]float64) error {
	if len(features) == 0 {
		return nil
	}
	f.trees = f.trees[:0]
	for i := 0; i < f.cfg.Trees; i++ {
		sample := f.sample(features)
		f.trees = append(f.trees, f.build(sample, 0))
	}
	return nil
}

// Score returns the [0,1] anomaly score and flag for every feature row.
func (f *IsolationForest) Score(features [][]float64) ([]float64, []bool) {
	scores := make([]float64, len(features))
	flags := make([]bool, len(features))
	if len(f.trees) == 0 {
		return scores, flags
	}
	c := avgPathLength(f.effectiveSampleSize())
	for i, row := range features {
		total := 0.0
		for _, tree := range f.trees {
			total += pathLength(tree, row, 0)
		}
		avg := total / float64(len(f.trees))
		score := math.Pow(2, -avg/c)
		scores[i] = score
		flags[i] = score > f.cfg.ScoreCutoff
	}
	return scores, flags
}

func (f *IsolationForest) effectiveSampleSize() int {
	if f.trees[0] != nil && f.trees[0].size < f.cfg.SubSampleSize {
		return f.trees[0].size
	}
	return f.cfg.SubSampleSize
}

func (f *IsolationForest) sample(features [][]float64) [][]float64 {
	size := f.cfg.SubSampleSize
	if size > len(features) {
		size = len(features)
	}
	shuffled := make([][]float64, len(features))
	copy(shuffled, features)
	f.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:size]
}

func (f *IsolationForest) build(rows [][]float64, depth int) *isoNode {
	if len(rows) <= 1 || depth >= f.cfg.MaxDepth || identicalRows(rows) {
		return &isoNode{size: len(rows), leaf: true}
	}

	feat := f.rng.Intn(len(rows[0]))
	lo, hi := rows[0][feat], rows[0][feat]
	for _, r := range rows {
		if r[feat] < lo {
			lo = r[feat]
		}
		if r[feat] > hi {
			hi = r[feat]
		}
	}
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feat] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(rows), leaf: true}
	}
	return &isoNode{
		index:   feat,
		feature: split,
		left:    f.build(left, depth+1),
		right:   f.build(right, depth+1),
		size:    len(rows),
	}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.leaf {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.index] < node.feature {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful search
// in a binary search tree over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	const eulerMascheroni = 0.5772156649
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

func identicalRows(rows [][]float64) bool {
	first := rows[0]
	for _, r := range rows[1:] {
		for j := range first {
			if math.Abs(r[j]-first[j]) > 1e-10 {
				return false
			}
		}
	}
	return true
}
