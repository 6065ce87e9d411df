package anomaly

import (
	"errors"
	"testing"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

func series(t *testing.T, values ...float64) *timeseries.EntityTimeSeries {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Date: start.AddDate(0, 0, i), Count: v}
	}
	return &timeseries.EntityTimeSeries{Entity: "acme", Points: points}
}

func flaggedDates(recs []Record) []time.Time {
	var out []time.Time
	for _, r := range recs {
		if r.Flagged {
			out = append(out, r.Date)
		}
	}
	return out
}

func TestZScoreFlagsSpike(t *testing.T) {
	d, err := New(Config{Method: MethodZScore})
	if err != nil {
		t.Fatal(err)
	}
	// eleven days: for a lone spike among constants the spike's z-score is
	// sqrt(n-1), here sqrt(10) > 3
	s := series(t, 1, 1, 1, 1, 1, 50, 1, 1, 1, 1, 1)
	recs, err := d.Detect(s)
	if err != nil {
		t.Fatal(err)
	}
	flagged := flaggedDates(recs)
	if len(flagged) != 1 {
		t.Fatalf("expected exactly one flagged day, got %d", len(flagged))
	}
	if !flagged[0].Equal(s.Points[5].Date) {
		t.Errorf("flagged %v, want the spike day %v", flagged[0], s.Points[5].Date)
	}
}

func TestZScoreThresholdIsStrict(t *testing.T) {
	d, err := New(Config{Method: MethodZScore})
	if err != nil {
		t.Fatal(err)
	}
	// ten days: the lone spike's z-score is sqrt(9) = 3.0 exactly, which
	// does not clear a strict > 3.0 threshold
	s := series(t, 1, 1, 1, 1, 1, 10, 1, 1, 1, 1)
	recs, err := d.Detect(s)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(flaggedDates(recs)); n != 0 {
		t.Errorf("expected no flags at the exact threshold, got %d", n)
	}
}

func TestZScoreEmptySeries(t *testing.T) {
	d, _ := New(Config{Method: MethodZScore})
	recs, err := d.Detect(&timeseries.EntityTimeSeries{Entity: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty table for empty series, got %d records", len(recs))
	}
}

func TestIQRFlagsOutlier(t *testing.T) {
	d, _ := New(Config{Method: MethodIQR})
	s := series(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 100)
	recs, err := d.Detect(s)
	if err != nil {
		t.Fatal(err)
	}
	flagged := flaggedDates(recs)
	if len(flagged) != 1 || !flagged[0].Equal(s.Points[9].Date) {
		t.Fatalf("expected only the outlier day flagged, got %v", flagged)
	}
	if recs[9].Score <= 0 {
		t.Errorf("outlier score = %v, want > 0", recs[9].Score)
	}
}

func TestMovingAverageFlagsSpikeAgainstRollingBaseline(t *testing.T) {
	d, _ := New(Config{Method: MethodMovingAverage, Window: 7})
	s := series(t, 4, 5, 6, 5, 4, 5, 6, 50)
	recs, err := d.Detect(s)
	if err != nil {
		t.Fatal(err)
	}
	if !recs[7].Flagged {
		t.Errorf("spike not flagged, score %v", recs[7].Score)
	}
	for i := 0; i < 7; i++ {
		if recs[i].Flagged {
			t.Errorf("baseline day %d flagged", i)
		}
	}
}

func TestChangePointAtLevelShift(t *testing.T) {
	d, _ := New(Config{Method: MethodZScore, ChangeWindow: 5})
	values := make([]float64, 20)
	for i := range values {
		if i < 10 {
			values[i] = 5
		} else {
			values[i] = 15
		}
	}
	s := series(t, values...)
	recs := d.DetectChangePoints(s)
	if len(recs) == 0 {
		t.Fatal("expected change-point records")
	}

	// the boundary day must be flagged with the maximum separation
	boundary := s.Points[10].Date
	var boundaryRec *Record
	for i := range recs {
		if recs[i].Date.Equal(boundary) {
			boundaryRec = &recs[i]
		}
	}
	if boundaryRec == nil || !boundaryRec.Flagged {
		t.Fatalf("level-shift boundary not flagged: %+v", boundaryRec)
	}
	for _, r := range recs {
		if r.Score > boundaryRec.Score {
			t.Errorf("day %v score %v exceeds boundary score %v", r.Date, r.Score, boundaryRec.Score)
		}
	}
}

func TestChangePointTooShort(t *testing.T) {
	d, _ := New(Config{Method: MethodZScore, ChangeWindow: 5})
	recs := d.DetectChangePoints(series(t, 1, 2, 3))
	if len(recs) != 0 {
		t.Errorf("expected no records for a too-short series, got %d", len(recs))
	}
}

func TestSeasonalFlagsWeekdayDeviation(t *testing.T) {
	d, _ := New(Config{Method: MethodZScore, Threshold: 1.5})
	// four identical weeks except one inflated Wednesday
	values := make([]float64, 28)
	for i := range values {
		values[i] = 10
	}
	values[16] = 50 // same weekday as 2, 9, 23
	s := series(t, values...)

	recs := d.DetectSeasonal(s)
	flagged := flaggedDates(recs)
	if len(flagged) != 1 || !flagged[0].Equal(s.Points[16].Date) {
		t.Fatalf("expected only the deviant weekday flagged, got %v", flagged)
	}
}

func TestContextualScoresBothBaselines(t *testing.T) {
	d, _ := New(Config{Method: MethodZScore})
	s := series(t, 1, 1, 1, 1, 1, 50, 1, 1, 1, 1, 1)
	recs := d.DetectContextual(s)
	if len(recs) != s.Len() {
		t.Fatalf("expected a record per day, got %d", len(recs))
	}
	if recs[5].Score <= recs[0].Score {
		t.Errorf("spike score %v not above quiet-day score %v", recs[5].Score, recs[0].Score)
	}
}

func TestIsolationForestScoresSpikeHighest(t *testing.T) {
	d, err := New(Config{Method: MethodIsolationForest, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	values := make([]float64, 40)
	for i := range values {
		values[i] = 5 + float64(i%3)
	}
	values[30] = 80
	s := series(t, values...)

	recs, err := d.Detect(s)
	if err != nil {
		t.Fatal(err)
	}
	// the lag-7 features drop the first week
	if len(recs) != s.Len()-7 {
		t.Fatalf("expected %d records, got %d", s.Len()-7, len(recs))
	}

	best := recs[0]
	for _, r := range recs {
		if r.Score > best.Score {
			best = r
		}
	}
	// the highest score lands on a day whose features carry the spike,
	// through its own value, a lag, or the rolling window
	lo, hi := s.Points[30].Date, s.Points[37].Date
	if best.Date.Before(lo) || best.Date.After(hi) {
		t.Errorf("highest score on %v, want a spike-influenced day in [%v, %v]", best.Date, lo, hi)
	}
}

func TestModelMethodShortSeries(t *testing.T) {
	d, _ := New(Config{Method: MethodIsolationForest, Seed: 1})
	recs, err := d.Detect(series(t, 1, 2, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty result for a series shorter than the lag window, got %d", len(recs))
	}
}

func TestCombineMethodsEventIsUnionOfFlags(t *testing.T) {
	d, err := New(Config{Method: MethodZScore, Window: 3, BurstSensitivity: 2.0})
	if err != nil {
		t.Fatal(err)
	}
	s := series(t, 2, 2, 2, 2, 20, 2, 2, 2, 2, 2, 2)
	recs, err := d.CombineMethods(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != s.Len() {
		t.Fatalf("expected a record per day, got %d", len(recs))
	}

	spike := recs[4]
	// the burst component alone flags the spike even though the global
	// z-score stays under threshold
	if !spike.IsEvent {
		t.Errorf("spike day not an event: %+v", spike)
	}
	for _, r := range recs {
		if r.Combined < 0 || r.Combined > 1 {
			t.Errorf("combined score %v outside [0,1] on %v", r.Combined, r.Date)
		}
	}
	quiet := 0
	for _, r := range recs {
		if !r.IsEvent {
			quiet++
		}
	}
	if quiet == 0 {
		t.Error("every day is an event, expected quiet days")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []Config{
		{Method: "rocket_science"},
		{Method: MethodZScore, Threshold: -1},
		{Method: MethodZScore, Window: 1},
		{Method: MethodZScore, ChangeWindow: 1},
		{Method: MethodZScore, ChangeThreshold: -2},
	}
	for _, cfg := range cases {
		if _, err := New(cfg); !errors.Is(err, timeseries.ErrInvalidParameter) {
			t.Errorf("config %+v: error = %v, want ErrInvalidParameter", cfg, err)
		}
	}

	if _, err := New(Config{}); err != nil {
		t.Errorf("zero config should default cleanly, got %v", err)
	}
}
