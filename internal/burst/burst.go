package burst

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Package burst detects short-lived, statistically significant upward
// deviations in mention volume: per-day burst scores against a rolling
// baseline, clustering of flagged days into burst events, classic peak
// detection, multi-scale scoring, and cross-entity correlated bursts.

const epsilon = 1e-9

// Score is one day's burst measurement.
type Score struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	Baseline float64   `json:"baseline"`
	Score    float64   `json:"score"`
	Flagged  bool      `json:"flagged"`
}

// Event is a contiguous run of bursting days.
type Event struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	PeakDate  time.Time `json:"peak_date"`
	PeakValue float64   `json:"peak_value"`
	PeakScore float64   `json:"peak_score"`
	Duration  int       `json:"duration_days"`
	Values    []float64 `json:"values"`
}

// Peak is a local maximum that clears the prominence and width bars.
type Peak struct {
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Prominence float64   `json:"prominence"`
	Width      int       `json:"width"`
}

// CrossEntityBurst records a window in which two or more entities burst at
// the same time.
type CrossEntityBurst struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Entities []string  `json:"entities"`
}

// Config parameterizes a Detector.
type Config struct {
	// Sensitivity is the z-threshold a day must exceed to count as
	// bursting. Default 2.0.
	Sensitivity float64
	// Window is the rolling-baseline window in days. Default 7.
	Window int
	// MinDuration is the minimum days an event must span to be kept.
	// Default 2.
	MinDuration int
	// MaxGap is the largest gap in days between flagged days folded into
	// one event. Default 1.
	MaxGap int
}

func (c *Config) applyDefaults() {
	if c.Sensitivity == 0 {
		c.Sensitivity = 2.0
	}
	if c.Window == 0 {
		c.Window = 7
	}
	if c.MinDuration == 0 {
		c.MinDuration = 2
	}
	if c.MaxGap == 0 {
		c.MaxGap = 1
	}
}

func (c *Config) validate() error {
	if c.Sensitivity <= 0 {
		return fmt.Errorf("%w: sensitivity %v must be > 0", timeseries.ErrInvalidParameter, c.Sensitivity)
	}
	if c.Window < 2 {
		return fmt.Errorf("%w: window %d must be >= 2", timeseries.ErrInvalidParameter, c.Window)
	}
	if c.MinDuration < 1 {
		return fmt.Errorf("%w: min duration %d must be >= 1", timeseries.ErrInvalidParameter, c.MinDuration)
	}
	if c.MaxGap < 1 {
		return fmt.Errorf("%w: max gap %d must be >= 1", timeseries.ErrInvalidParameter, c.MaxGap)
	}
	return nil
}

// Detector scores series for bursts.
type Detector struct {
	cfg Config
}

// New creates a Detector, failing fast on invalid parameters.
func New(cfg Config) (*Detector, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Detect scores every day against its rolling baseline. A day is flagged
// only when its score exceeds the sensitivity AND its value is at or above
// the baseline mean: a burst is never a decrease.
func (d *Detector) Detect(s *timeseries.EntityTimeSeries) []Score {
	if s == nil || s.IsEmpty() {
		return []Score{}
	}
	return d.detectWindow(s, d.cfg.Window)
}

func (d *Detector) detectWindow(s *timeseries.EntityTimeSeries, window int) []Score {
	values := s.Values()
	means, stds := timeseries.RollingBaseline(values, window)

	scores := make([]Score, 0, len(values))
	for i, p := range s.Points {
		score := (values[i] - means[i]) / (stds[i] + epsilon)
		flagged := score > d.cfg.Sensitivity && values[i] >= means[i]
		scores = append(scores, Score{
			Date:     p.Date,
			Value:    values[i],
			Baseline: means[i],
			Score:    score,
			Flagged:  flagged,
		})
	}
	return scores
}

// DetectEvents clusters flagged days into burst events. Consecutive or
// near-consecutive flagged days (gap <= MaxGap) fold into one event tracking
// the running peak; events shorter than MinDuration are discarded.
func (d *Detector) DetectEvents(s *timeseries.EntityTimeSeries) []Event {
	scores := d.Detect(s)

	var events []Event
	var open *Event
	var lastFlagged time.Time

	closeEvent := func() {
		if open == nil {
			return
		}
		open.Duration = int(open.End.Sub(open.Start).Hours()/24) + 1
		if open.Duration >= d.cfg.MinDuration {
			events = append(events, *open)
		}
		open = nil
	}

	for _, sc := range scores {
		if !sc.Flagged {
			if open != nil && daysBetween(lastFlagged, sc.Date) > d.cfg.MaxGap {
				closeEvent()
			}
			continue
		}
		if open != nil && daysBetween(lastFlagged, sc.Date) > d.cfg.MaxGap {
			closeEvent()
		}
		if open == nil {
			open = &Event{
				Start:     sc.Date,
				PeakDate:  sc.Date,
				PeakValue: sc.Value,
				PeakScore: sc.Score,
			}
		}
		open.End = sc.Date
		open.Values = append(open.Values, sc.Value)
		if sc.Value > open.PeakValue {
			open.PeakDate = sc.Date
			open.PeakValue = sc.Value
			open.PeakScore = sc.Score
		}
		lastFlagged = sc.Date
	}
	closeEvent()

	return events
}

// DetectPeaks finds local maxima whose prominence over both neighboring
// local minima is at least prominence and whose width at the base is at
// least minWidth days.
func (d *Detector) DetectPeaks(s *timeseries.EntityTimeSeries, prominence float64, minWidth int) []Peak {
	if s == nil || s.Len() < 3 {
		return []Peak{}
	}
	values := s.Values()
	n := len(values)

	var peaks []Peak
	for i := 1; i < n-1; i++ {
		if !(values[i] > values[i-1] && values[i] >= values[i+1]) {
			continue
		}

		// walk to the neighboring local minima
		leftMin := values[i]
		li := i
		for j := i - 1; j >= 0; j-- {
			if values[j] > values[i] {
				break
			}
			if values[j] < leftMin {
				leftMin = values[j]
				li = j
			}
		}
		rightMin := values[i]
		ri := i
		for j := i + 1; j < n; j++ {
			if values[j] > values[i] {
				break
			}
			if values[j] < rightMin {
				rightMin = values[j]
				ri = j
			}
		}

		prom := math.Min(values[i]-leftMin, values[i]-rightMin)
		width := ri - li
		if prom >= prominence && width >= minWidth {
			peaks = append(peaks, Peak{
				Date:       s.Points[i].Date,
				Value:      values[i],
				Prominence: prom,
				Width:      width,
			})
		}
	}
	return peaks
}

// MultiScaleScales are the default window sizes for multi-scale detection.
var MultiScaleScales = []int{3, 7, 14, 30}

// DetectMultiScale repeats the rolling-baseline scoring at several window
// sizes, averaging the per-scale scores and OR-ing the per-scale flags.
func (d *Detector) DetectMultiScale(s *timeseries.EntityTimeSeries, scales []int) []Score {
	if s == nil || s.IsEmpty() {
		return []Score{}
	}
	if len(scales) == 0 {
		scales = MultiScaleScales
	}

	combined := make([]Score, s.Len())
	for i, p := range s.Points {
		combined[i] = Score{Date: p.Date, Value: p.Count}
	}
	for _, w := range scales {
		scores := d.detectWindow(s, w)
		for i, sc := range scores {
			combined[i].Score += sc.Score
			combined[i].Baseline += sc.Baseline
			combined[i].Flagged = combined[i].Flagged || sc.Flagged
		}
	}
	for i := range combined {
		combined[i].Score /= float64(len(scales))
		combined[i].Baseline /= float64(len(scales))
	}
	return combined
}

// DetectCrossEntity finds calendar dates on which at least two entities have
// an active burst event and merges near dates (gap <= MaxGap) into one
// cross-entity record listing all participants.
func (d *Detector) DetectCrossEntity(eventsByEntity map[string][]Event) []CrossEntityBurst {
	type daySet struct {
		date     time.Time
		entities map[string]struct{}
	}

	active := make(map[time.Time]map[string]struct{})
	for entity, events := range eventsByEntity {
		for _, ev := range events {
			for d := ev.Start; !d.After(ev.End); d = d.AddDate(0, 0, 1) {
				if active[d] == nil {
					active[d] = make(map[string]struct{})
				}
				active[d][entity] = struct{}{}
			}
		}
	}

	var shared []daySet
	for date, entities := range active {
		if len(entities) >= 2 {
			shared = append(shared, daySet{date, entities})
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].date.Before(shared[j].date) })

	var out []CrossEntityBurst
	var open *CrossEntityBurst
	var openEntities map[string]struct{}

	closeBurst := func() {
		if open == nil {
			return
		}
		for e := range openEntities {
			open.Entities = append(open.Entities, e)
		}
		sort.Strings(open.Entities)
		out = append(out, *open)
		open = nil
	}

	for _, ds := range shared {
		if open != nil && daysBetween(open.End, ds.date) > d.cfg.MaxGap {
			closeBurst()
		}
		if open == nil {
			open = &CrossEntityBurst{Start: ds.date}
			openEntities = make(map[string]struct{})
		}
		open.End = ds.date
		for e := range ds.entities {
			openEntities[e] = struct{}{}
		}
	}
	closeBurst()

	return out
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
