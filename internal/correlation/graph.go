package correlation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Correlation and causal networks are plain node/edge lists so downstream
// collaborators can serialize them directly; gonum's graph machinery is
// used internally for community detection.

// Edge is one relationship in a network. For undirected networks A/B
// ordering is arbitrary; for directed networks A is the source (leader).
type Edge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"` // signed correlation
	PValue float64 `json:"p_value"`
	Lag    int     `json:"lag,omitempty"` // days, directed networks only
}

// Network is an undirected weighted correlation graph.
type Network struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// DirectedNetwork is a lead/lag graph: each edge points from the leading
// entity to the lagging one.
type DirectedNetwork struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Causal is one ranked lead/lag relationship.
type Causal struct {
	Cause       string  `json:"cause"`
	Effect      string  `json:"effect"`
	Lag         int     `json:"lag_days"` // always > 0
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
}

// BuildNetwork emits the undirected weighted correlation graph over the
// given series: an edge exists iff |r| >= MinCorrelation and, when
// significance filtering is on, p <= PThreshold. Edge weight is the signed
// correlation.
func (a *Analyzer) BuildNetwork(series []*timeseries.EntityTimeSeries, filterSignificance bool) *Network {
	net := &Network{Nodes: entityNames(series)}
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			res := a.Correlate(series[i], series[j])
			if math.Abs(res.Correlation) < a.cfg.MinCorrelation {
				continue
			}
			if filterSignificance && res.PValue > a.cfg.PThreshold {
				continue
			}
			net.Edges = append(net.Edges, Edge{
				A:      series[i].Entity,
				B:      series[j].Entity,
				Weight: res.Correlation,
				PValue: res.PValue,
			})
		}
	}
	return net
}

// BuildLaggedNetwork emits the directed lead/lag graph: for each pair whose
// best lag is nonzero and clears the correlation and significance bars, an
// edge points from the leading entity to the lagging one, carrying the best
// lag's magnitude.
func (a *Analyzer) BuildLaggedNetwork(series []*timeseries.EntityTimeSeries, maxLag int) *DirectedNetwork {
	net := &DirectedNetwork{Nodes: entityNames(series)}
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			lr := a.CorrelateLagged(series[i], series[j], maxLag)
			if lr.BestLag == 0 || math.Abs(lr.BestCorrelation) < a.cfg.MinCorrelation {
				continue
			}
			if lr.BestPValue > a.cfg.PThreshold {
				continue
			}
			edge := Edge{
				Weight: lr.BestCorrelation,
				PValue: lr.BestPValue,
			}
			if lr.BestLag > 0 { // A leads B
				edge.A, edge.B, edge.Lag = lr.EntityA, lr.EntityB, lr.BestLag
			} else { // B leads A
				edge.A, edge.B, edge.Lag = lr.EntityB, lr.EntityA, -lr.BestLag
			}
			net.Edges = append(net.Edges, edge)
		}
	}
	return net
}

// Communities applies Louvain modularity maximization to an undirected
// correlation network and returns the entity groups, largest first.
// Isolated entities form singleton communities.
func Communities(net *Network) [][]string {
	if net == nil || len(net.Nodes) == 0 {
		return nil
	}

	ids := make(map[string]int64, len(net.Nodes))
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i, name := range net.Nodes {
		ids[name] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range net.Edges {
		// modularity needs non-negative weights; community structure cares
		// about association strength, not sign
		w := math.Abs(e.Weight)
		if w == 0 {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(ids[e.A]), simple.Node(ids[e.B]), w))
	}

	reduced := community.Modularize(g, 1.0, nil)
	groups := reduced.Communities()

	out := make([][]string, 0, len(groups))
	for _, grp := range groups {
		names := make([]string, 0, len(grp))
		for _, node := range grp {
			names = append(names, net.Nodes[node.ID()])
		}
		sort.Strings(names)
		out = append(out, names)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// CausalRelationships reads the directed lagged graph into a ranked list of
// lead/lag relationships, strongest |correlation| first.
func (a *Analyzer) CausalRelationships(series []*timeseries.EntityTimeSeries, maxLag int) []Causal {
	net := a.BuildLaggedNetwork(series, maxLag)
	out := make([]Causal, 0, len(net.Edges))
	for _, e := range net.Edges {
		out = append(out, Causal{
			Cause:       e.A,
			Effect:      e.B,
			Lag:         e.Lag,
			Correlation: e.Weight,
			PValue:      e.PValue,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

func entityNames(series []*timeseries.EntityTimeSeries) []string {
	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Entity
	}
	return names
}
