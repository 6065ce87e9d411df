package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Package anomaly scores entity mention series for outlier, seasonal, and
// change-point behavior using six interchangeable strategies.
//
// Strategies:
//   - z_score, iqr, moving_average: formula-based
//   - isolation_forest, local_outlier_factor, one_class_svm: model-based,
//     trained inside Detect on the series' lag/rolling/day-of-week feature
//     matrix
//
// The formula strategies score every day of the series. The model strategies
// only score days retained by feature construction: the lag-7 feature drops
// the first seven days, so those days produce no record.

// Method identifies a detection strategy.
type Method string

const (
	MethodIsolationForest Method = "isolation_forest"
	MethodLOF             Method = "local_outlier_factor"
	MethodOneClassSVM     Method = "one_class_svm"
	MethodZScore          Method = "z_score"
	MethodIQR             Method = "iqr"
	MethodMovingAverage   Method = "moving_average"
	MethodSeasonal        Method = "seasonal"
	MethodChangePoint     Method = "change_point"
)

// Record is one scored day.
type Record struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Score   float64   `json:"score"`
	Flagged bool      `json:"flagged"`
	Method  Method    `json:"method"`
}

// Config parameterizes a Detector.
type Config struct {
	Method Method

	// Threshold is the flag threshold for the formula strategies and the
	// contextual and seasonal variants. Flagging is strict: a score exactly
	// at the threshold is not flagged. Default 3.0.
	Threshold float64

	// Window is the rolling window for the moving_average strategy and for
	// feature construction. Default 7.
	Window int

	// ChangeWindow is the size of each of the two adjacent windows slid
	// across the series by change-point detection. Default 5.
	ChangeWindow int

	// ChangeThreshold is the normalized mean-separation threshold for
	// change-point detection. Default 2.0.
	ChangeThreshold float64

	// BurstSensitivity is the z-threshold for the burst component of
	// CombineMethods. Default 2.0.
	BurstSensitivity float64

	// Seed seeds the model-based strategies' RNG. Zero means time-based.
	Seed int64
}

func (c *Config) applyDefaults() {
	if c.Method == "" {
		c.Method = MethodIsolationForest
	}
	if c.Threshold == 0 {
		c.Threshold = 3.0
	}
	if c.Window == 0 {
		c.Window = 7
	}
	if c.ChangeWindow == 0 {
		c.ChangeWindow = 5
	}
	if c.ChangeThreshold == 0 {
		c.ChangeThreshold = 2.0
	}
	if c.BurstSensitivity == 0 {
		c.BurstSensitivity = 2.0
	}
}

func (c *Config) validate() error {
	switch c.Method {
	case MethodIsolationForest, MethodLOF, MethodOneClassSVM,
		MethodZScore, MethodIQR, MethodMovingAverage:
	default:
		return fmt.Errorf("%w: unknown method %q", timeseries.ErrInvalidParameter, c.Method)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("%w: threshold %v must be >= 0", timeseries.ErrInvalidParameter, c.Threshold)
	}
	if c.Window < 2 {
		return fmt.Errorf("%w: window %d must be >= 2", timeseries.ErrInvalidParameter, c.Window)
	}
	if c.ChangeWindow < 2 {
		return fmt.Errorf("%w: change window %d must be >= 2", timeseries.ErrInvalidParameter, c.ChangeWindow)
	}
	if c.ChangeThreshold <= 0 {
		return fmt.Errorf("%w: change threshold %v must be > 0", timeseries.ErrInvalidParameter, c.ChangeThreshold)
	}
	return nil
}

// Detector scores one entity's series with a single strategy. It holds only
// configuration, so a single Detector is safe for concurrent use; the
// model-based strategies train on each series inside the Detect call.
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

// Method returns the configured strategy.
func (d *Detector) Method() Method { return d.cfg.Method }

// Detect scores the series with the configured strategy. Short or empty
// series yield an empty table, never an error.
func (d *Detector) Detect(s *timeseries.EntityTimeSeries) ([]Record, error) {
	if s == nil || s.IsEmpty() {
		return []Record{}, nil
	}
	switch d.cfg.Method {
	case MethodZScore:
		return d.detectZScore(s), nil
	case MethodIQR:
		return d.detectIQR(s), nil
	case MethodMovingAverage:
		return d.detectMovingAverage(s), nil
	}
	return d.detectModel(s)
}

func (d *Detector) detectZScore(s *timeseries.EntityTimeSeries) []Record {
	values := s.Values()
	mean := timeseries.Mean(values)
	std := timeseries.Std(values)

	records := make([]Record, 0, len(values))
	for i, p := range s.Points {
		z := 0.0
		if std > 0 {
			z = (values[i] - mean) / std
		}
		records = append(records, Record{
			Date:    p.Date,
			Value:   p.Count,
			Score:   z,
			Flagged: math.Abs(z) > d.cfg.Threshold,
			Method:  MethodZScore,
		})
	}
	return records
}

func (d *Detector) detectIQR(s *timeseries.EntityTimeSeries) []Record {
	values := s.Values()
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := timeseries.Quantile(sorted, 0.25)
	q3 := timeseries.Quantile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	records := make([]Record, 0, len(values))
	for i, p := range s.Points {
		v := values[i]
		score := 0.0
		if iqr > 0 {
			// distance beyond the nearest fence, in fence units
			if v > upper {
				score = (v - upper) / iqr
			} else if v < lower {
				score = (lower - v) / iqr
			}
		}
		records = append(records, Record{
			Date:    p.Date,
			Value:   v,
			Score:   score,
			Flagged: v < lower || v > upper,
			Method:  MethodIQR,
		})
	}
	return records
}

func (d *Detector) detectMovingAverage(s *timeseries.EntityTimeSeries) []Record {
	values := s.Values()
	means, stds := timeseries.RollingBaseline(values, d.cfg.Window)

	records := make([]Record, 0, len(values))
	for i, p := range s.Points {
		score := 0.0
		if stds[i] > 0 {
			score = (values[i] - means[i]) / stds[i]
		}
		records = append(records, Record{
			Date:    p.Date,
			Value:   p.Count,
			Score:   score,
			Flagged: math.Abs(score) > d.cfg.Threshold,
			Method:  MethodMovingAverage,
		})
	}
	return records
}

func (d *Detector) detectModel(s *timeseries.EntityTimeSeries) ([]Record, error) {
	features, rows := BuildFeatures(s, d.cfg.Window)
	if len(features) == 0 {
		return []Record{}, nil
	}

	var scores []float64
	var flags []bool
	switch d.cfg.Method {
	case MethodIsolationForest:
		forest := NewIsolationForest(ForestConfig{Seed: d.cfg.Seed})
		if err := forest.Fit(features); err != nil {
			return nil, fmt.Errorf("isolation forest: %w", err)
		}
		scores, flags = forest.Score(features)
	case MethodLOF:
		lof := NewLocalOutlierFactor(20)
		if err := lof.Fit(features); err != nil {
			return nil, fmt.Errorf("local outlier factor: %w", err)
		}
		scores, flags = lof.Score(features)
	case MethodOneClassSVM:
		svm := NewOneClassSVM(SVMConfig{})
		if err := svm.Fit(features); err != nil {
			return nil, fmt.Errorf("one-class svm: %w", err)
		}
		scores, flags = svm.Score(features)
	}

	records := make([]Record, 0, len(rows))
	for k, idx := range rows {
		p := s.Points[idx]
		records = append(records, Record{
			Date:    p.Date,
			Value:   p.Count,
			Score:   scores[k],
			Flagged: flags[k],
			Method:  d.cfg.Method,
		})
	}
	return records, nil
}

// DetectContextual scores each day against both the global baseline and a
// day-of-week baseline, flagging when either score exceeds the threshold.
// The record's score is the mean of the two.
func (d *Detector) DetectContextual(s *timeseries.EntityTimeSeries) []Record {
	if s == nil || s.IsEmpty() {
		return []Record{}
	}
	values := s.Values()
	mean := timeseries.Mean(values)
	std := timeseries.Std(values)

	dowMean, dowStd := weekdayBaselines(s)

	records := make([]Record, 0, len(values))
	for i, p := range s.Points {
		global := 0.0
		if std > 0 {
			global = math.Abs(values[i]-mean) / std
		}

		wd := int(p.Date.Weekday())
		contextual := global
		if dowStd[wd] > 0 {
			contextual = math.Abs(values[i]-dowMean[wd]) / dowStd[wd]
		}

		records = append(records, Record{
			Date:    p.Date,
			Value:   p.Count,
			Score:   (global + contextual) / 2,
			Flagged: global > d.cfg.Threshold || contextual > d.cfg.Threshold,
			Method:  MethodZScore,
		})
	}
	return records
}

// DetectSeasonal flags days deviating more than the threshold (in standard
// deviations) from the mean of their day of week.
func (d *Detector) DetectSeasonal(s *timeseries.EntityTimeSeries) []Record {
	if s == nil || s.IsEmpty() {
		return []Record{}
	}
	dowMean, dowStd := weekdayBaselines(s)

	records := make([]Record, 0, s.Len())
	for _, p := range s.Points {
		wd := int(p.Date.Weekday())
		score := 0.0
		if dowStd[wd] > 0 {
			score = (p.Count - dowMean[wd]) / dowStd[wd]
		}
		records = append(records, Record{
			Date:    p.Date,
			Value:   p.Count,
			Score:   score,
			Flagged: math.Abs(score) > d.cfg.Threshold,
			Method:  MethodSeasonal,
		})
	}
	return records
}

// DetectChangePoints slides two adjacent fixed windows across the series and
// flags a date when the separation of the two windows' means, scaled by the
// pooled standard deviation, exceeds the change threshold. The flagged date
// is the first day of the trailing window.
func (d *Detector) DetectChangePoints(s *timeseries.EntityTimeSeries) []Record {
	if s == nil || s.Len() < 2*d.cfg.ChangeWindow {
		return []Record{}
	}
	values := s.Values()
	w := d.cfg.ChangeWindow

	records := make([]Record, 0)
	for i := w; i+w <= len(values); i++ {
		before := values[i-w : i]
		after := values[i : i+w]

		mb, ma := timeseries.Mean(before), timeseries.Mean(after)
		sb, sa := timeseries.Std(before), timeseries.Std(after)
		pooled := math.Sqrt((sb*sb + sa*sa) / 2)

		score := 0.0
		if pooled > 0 {
			score = math.Abs(ma-mb) / pooled
		} else if ma != mb {
			score = math.Inf(1)
		}

		p := s.Points[i]
		records = append(records, Record{
			Date:    p.Date,
			Value:   p.Count,
			Score:   score,
			Flagged: score > d.cfg.ChangeThreshold,
			Method:  MethodChangePoint,
		})
	}
	return records
}

// CombinedRecord is one day scored by all four detection families at once.
type CombinedRecord struct {
	Date          time.Time `json:"date"`
	Value         float64   `json:"value"`
	AnomalyScore  float64   `json:"anomaly_score"`
	ChangeScore   float64   `json:"change_score"`
	SeasonalScore float64   `json:"seasonal_score"`
	BurstScore    float64   `json:"burst_score"`
	Combined      float64   `json:"combined_score"`
	IsEvent       bool      `json:"is_event"`
}

// CombineMethods runs anomaly, change-point, seasonal, and burst scoring
// together. Combined is the mean of the four normalized scores; IsEvent is
// true when any of the four individual flags is true.
func (d *Detector) CombineMethods(s *timeseries.EntityTimeSeries) ([]CombinedRecord, error) {
	if s == nil || s.IsEmpty() {
		return []CombinedRecord{}, nil
	}

	anomalyRecs, err := d.Detect(s)
	if err != nil {
		return nil, err
	}
	changeRecs := d.DetectChangePoints(s)
	seasonalRecs := d.DetectSeasonal(s)
	burstScores, burstFlags := d.burstScores(s)

	type cell struct {
		score   float64
		flagged bool
		present bool
	}
	index := func(recs []Record) map[time.Time]cell {
		m := make(map[time.Time]cell, len(recs))
		for _, r := range recs {
			m[r.Date] = cell{score: math.Abs(r.Score), flagged: r.Flagged, present: true}
		}
		return m
	}
	anomalyBy := index(anomalyRecs)
	changeBy := index(changeRecs)
	seasonalBy := index(seasonalRecs)

	norm := func(m map[time.Time]cell) {
		maxAbs := 0.0
		for _, c := range m {
			if c.score > maxAbs && !math.IsInf(c.score, 0) {
				maxAbs = c.score
			}
		}
		if maxAbs == 0 {
			return
		}
		for k, c := range m {
			if math.IsInf(c.score, 0) {
				c.score = 1
			} else {
				c.score /= maxAbs
			}
			m[k] = c
		}
	}
	norm(anomalyBy)
	norm(changeBy)
	norm(seasonalBy)

	maxBurst := 0.0
	for _, v := range burstScores {
		if v > maxBurst {
			maxBurst = v
		}
	}

	out := make([]CombinedRecord, 0, s.Len())
	for i, p := range s.Points {
		a := anomalyBy[p.Date]
		c := changeBy[p.Date]
		se := seasonalBy[p.Date]

		b := burstScores[i]
		if maxBurst > 0 {
			b /= maxBurst
		}

		rec := CombinedRecord{
			Date:          p.Date,
			Value:         p.Count,
			AnomalyScore:  a.score,
			ChangeScore:   c.score,
			SeasonalScore: se.score,
			BurstScore:    b,
			Combined:      (a.score + c.score + se.score + b) / 4,
			IsEvent:       a.flagged || c.flagged || se.flagged || burstFlags[i],
		}
		out = append(out, rec)
	}
	return out, nil
}

// burstScores computes rolling-baseline burst scores on the shared
// primitives. A burst is an increase only: days below their baseline score 0.
func (d *Detector) burstScores(s *timeseries.EntityTimeSeries) ([]float64, []bool) {
	values := s.Values()
	means, stds := timeseries.RollingBaseline(values, d.cfg.Window)

	scores := make([]float64, len(values))
	flags := make([]bool, len(values))
	for i, v := range values {
		score := (v - means[i]) / (stds[i] + burstEpsilon)
		if v < means[i] {
			scores[i] = 0
			continue
		}
		scores[i] = score
		flags[i] = score > d.cfg.BurstSensitivity
	}
	return scores, flags
}

const burstEpsilon = 1e-9

// weekdayBaselines returns per-day-of-week mean and population standard
// deviation. Weekdays with fewer than two observations keep zero spread so
// callers fall back to the global baseline.
func weekdayBaselines(s *timeseries.EntityTimeSeries) (mean, std [7]float64) {
	var buckets [7][]float64
	for _, p := range s.Points {
		wd := int(p.Date.Weekday())
		buckets[wd] = append(buckets[wd], p.Count)
	}
	for wd, vals := range buckets {
		mean[wd] = timeseries.Mean(vals)
		std[wd] = timeseries.Std(vals)
	}
	return mean, std
}
