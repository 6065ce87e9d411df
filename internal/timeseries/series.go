package timeseries

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Package timeseries defines the entity mention time series and the provider
// contract every analysis component consumes.
//
// Responsibilities:
//   - Represent one entity's daily mention history as a contiguous,
//     zero-filled, read-only snapshot
//   - Resolve raw (date, count) rows into that snapshot for a date range
//   - Provide the shared rolling-statistics primitives used by the anomaly
//     and burst detectors so the two cannot diverge

// ErrEntityNotFound is returned when an entity has no stored mentions at all.
// An entity that exists but has no rows in the requested range yields an
// empty series instead.
var ErrEntityNotFound = errors.New("entity not found")

// ErrInvalidParameter reports a structurally invalid configuration value
// (zero window, negative threshold, and so on). Detectors fail fast with it
// at construction time.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrInsufficientData reports a series too short for the requested analysis.
// Most callers degrade to an empty result instead of surfacing this.
var ErrInsufficientData = errors.New("insufficient data")

// Point is a single day of an entity's mention history. Count is a
// non-negative daily mention total; it is float64 so downstream statistics
// can consume values without conversion.
type Point struct {
	Date  time.Time `json:"date"`
	Count float64   `json:"count"`
}

// EntityTimeSeries is a contiguous daily mention series for one entity.
// Days without mentions carry an explicit zero. The snapshot is built fresh
// per request and never mutated by analysis code.
type EntityTimeSeries struct {
	Entity string  `json:"entity"`
	Points []Point `json:"points"`
}

// Provider resolves an entity's daily mention counts over a date range.
// A zero from/to means "unbounded on that side"; the span is then derived
// from the stored data.
type Provider interface {
	Series(ctx context.Context, entity string, from, to time.Time) (*EntityTimeSeries, error)
}

// Day normalizes a timestamp to midnight UTC so all series share one
// calendar-day representation.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Reindex builds a contiguous zero-filled series from raw daily rows.
// Rows on the same calendar day are summed. When from or to are zero they
// default to the first and last observed day. An empty input with zero
// bounds yields an empty series.
func Reindex(entity string, rows []Point, from, to time.Time) *EntityTimeSeries {
	counts := make(map[time.Time]float64, len(rows))
	var first, last time.Time
	for _, r := range rows {
		d := Day(r.Date)
		counts[d] += r.Count
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}

	if from.IsZero() {
		from = first
	} else {
		from = Day(from)
	}
	if to.IsZero() {
		to = last
	} else {
		to = Day(to)
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return &EntityTimeSeries{Entity: entity}
	}

	n := int(to.Sub(from).Hours()/24) + 1
	points := make([]Point, 0, n)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		points = append(points, Point{Date: d, Count: counts[d]})
	}
	return &EntityTimeSeries{Entity: entity, Points: points}
}

// Len returns the number of days in the series.
func (s *EntityTimeSeries) Len() int { return len(s.Points) }

// IsEmpty reports whether the series has no days at all.
func (s *EntityTimeSeries) IsEmpty() bool { return len(s.Points) == 0 }

// Values returns the daily counts as a fresh slice.
func (s *EntityTimeSeries) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Count
	}
	return vals
}

// Dates returns the calendar days of the series as a fresh slice.
func (s *EntityTimeSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// At returns the point at index i.
func (s *EntityTimeSeries) At(i int) Point { return s.Points[i] }

// IndexOf returns the index of the given calendar day, or -1.
func (s *EntityTimeSeries) IndexOf(date time.Time) int {
	d := Day(date)
	n := len(s.Points)
	i := sort.Search(n, func(i int) bool { return !s.Points[i].Date.Before(d) })
	if i < n && s.Points[i].Date.Equal(d) {
		return i
	}
	return -1
}

// Slice returns a copy of the series restricted to [from, to].
func (s *EntityTimeSeries) Slice(from, to time.Time) *EntityTimeSeries {
	from, to = Day(from), Day(to)
	out := &EntityTimeSeries{Entity: s.Entity}
	for _, p := range s.Points {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}
