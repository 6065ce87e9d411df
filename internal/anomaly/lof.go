package anomaly

import (
	"math"
	"sort"
)

// Local outlier factor: compares each row's local reachability density to
// that of its k nearest neighbors. A factor near 1 means the row sits in a
// region of comparable density; factors well above 1 mark outliers.

// LocalOutlierFactor scores feature rows by local density deviation.
type LocalOutlierFactor struct {
	k      int
	cutoff float64
	data   [][]float64
	kDist  []float64
	neigh  [][]int
	lrd    []float64
}

// NewLocalOutlierFactor creates a LOF scorer with k neighbors. A cutoff of
// 1.5 on the factor marks outliers, the usual rule of thumb.
func NewLocalOutlierFactor(k int) *LocalOutlierFactor {
	if k < 1 {
		k = 20
	}
	return &LocalOutlierFactor{k: k, cutoff: 1.5}
}

// Fit stores the training rows and precomputes neighborhoods and local
// reachability densities.
func (l *LocalOutlierFactor) Fit(features [][]float64) error {
	n := len(features)
	l.data = features
	if n == 0 {
		return nil
	}
	k := l.k
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}

	type distIdx struct {
		d float64
		i int
	}

	l.kDist = make([]float64, n)
	l.neigh = make([][]int, n)
	dists := make([][]float64, n)
	for i := range features {
		dists[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(features[i], features[j])
			dists[i][j], dists[j][i] = d, d
		}
	}

	for i := 0; i < n; i++ {
		order := make([]distIdx, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			order = append(order, distIdx{dists[i][j], j})
		}
		sort.Slice(order, func(a, b int) bool { return order[a].d < order[b].d })
		l.kDist[i] = order[k-1].d
		for _, o := range order[:k] {
			l.neigh[i] = append(l.neigh[i], o.i)
		}
	}

	// local reachability density: inverse mean reachability distance
	l.lrd = make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, j := range l.neigh[i] {
			reach := dists[i][j]
			if l.kDist[j] > reach {
				reach = l.kDist[j]
			}
			sum += reach
		}
		if sum == 0 {
			l.lrd[i] = math.Inf(1)
		} else {
			l.lrd[i] = float64(len(l.neigh[i])) / sum
		}
	}
	return nil
}

// Score returns each training row's LOF value and outlier flag. Rows in
// uniform-density data score near 1.
func (l *LocalOutlierFactor) Score(features [][]float64) ([]float64, []bool) {
	n := len(features)
	scores := make([]float64, n)
	flags := make([]bool, n)
	if len(l.lrd) != n {
		return scores, flags
	}
	for i := 0; i < n; i++ {
		if len(l.neigh[i]) == 0 {
			scores[i] = 1
			continue
		}
		sum := 0.0
		finite := true
		for _, j := range l.neigh[i] {
			if math.IsInf(l.lrd[j], 1) || math.IsInf(l.lrd[i], 1) {
				finite = false
				break
			}
			sum += l.lrd[j] / l.lrd[i]
		}
		if !finite {
			scores[i] = 1
		} else {
			scores[i] = sum / float64(len(l.neigh[i]))
		}
		flags[i] = scores[i] > l.cutoff
	}
	return scores, flags
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
