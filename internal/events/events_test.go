package events

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/anomaly"
	"github.com/mentionpulse/mentionpulse-analytics/internal/burst"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return testStart.AddDate(0, 0, n) }

func series(t *testing.T, entity string, values ...float64) *timeseries.EntityTimeSeries {
	t.Helper()
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Date: day(i), Count: v}
	}
	return &timeseries.EntityTimeSeries{Entity: entity, Points: points}
}

func TestMergeDetectionsGroupsWithinGap(t *testing.T) {
	raw := []detection{
		{date: day(10), value: 3, score: 1, method: "z_score", description: "late"},
		{date: day(0), value: 5, score: 2, method: "z_score", description: "small"},
		{date: day(2), value: 9, score: 4, method: "burst", description: "big"},
	}

	events := mergeDetections("acme", raw, 3)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	first := events[0]
	if !first.Date.Equal(day(2)) {
		t.Errorf("date = %v, the highest-scoring detection sets the date", first.Date)
	}
	if first.Value != 9 || first.Description != "big" {
		t.Errorf("event = %+v, the highest-scoring detection sets value and description", first)
	}
	if first.Score != 3 {
		t.Errorf("score = %v, want mean 3", first.Score)
	}
	if len(first.Methods) != 2 || first.Methods[0] != "burst" || first.Methods[1] != "z_score" {
		t.Errorf("methods = %v, want sorted union", first.Methods)
	}
	if first.ID == "" || events[1].ID == "" || first.ID == events[1].ID {
		t.Errorf("ids = %q, %q, want distinct non-empty ids", first.ID, events[1].ID)
	}

	if !events[1].Date.Equal(day(10)) {
		t.Errorf("second event date = %v, want %v", events[1].Date, day(10))
	}
}

func TestMergeDetectionsChainsFromLastMember(t *testing.T) {
	// each detection is 3 days from the previous one, so with gap 3 the
	// chain folds into a single event even though the ends are 6 apart
	raw := []detection{
		{date: day(0), score: 1, method: "z_score"},
		{date: day(3), score: 2, method: "z_score"},
		{date: day(6), score: 3, method: "burst"},
	}

	events := mergeDetections("acme", raw, 3)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if !events[0].Date.Equal(day(6)) {
		t.Errorf("date = %v, want %v", events[0].Date, day(6))
	}
	if events[0].Score != 2 {
		t.Errorf("score = %v, want mean 2", events[0].Score)
	}
}

func TestMergeDetectionsEmpty(t *testing.T) {
	if events := mergeDetections("acme", nil, 3); events != nil {
		t.Fatalf("events = %v, want nil", events)
	}
}

func TestEntityDetectorCombinesMethods(t *testing.T) {
	d, err := NewEntityDetector(EntityConfig{
		Anomaly: anomaly.Config{Method: anomaly.MethodZScore},
		Burst:   burst.Config{MinDuration: 1},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	s := series(t, "acme", 1, 1, 1, 1, 1, 50, 1, 1, 1, 1, 1)
	events, err := d.DetectSeries(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 {
		t.Fatal("no events for an obvious spike")
	}

	var spike *CombinedEvent
	for i := range events {
		if events[i].Date.Equal(day(5)) {
			spike = &events[i]
			break
		}
	}
	if spike == nil {
		t.Fatalf("no event dated at the spike, events = %+v", events)
	}
	if spike.Value != 50 {
		t.Errorf("value = %v, want 50", spike.Value)
	}
	has := func(m string) bool {
		for _, got := range spike.Methods {
			if got == m {
				return true
			}
		}
		return false
	}
	if !has("burst") || !has("z_score") {
		t.Errorf("methods = %v, want both burst and zscore", spike.Methods)
	}
}

func TestEntityDetectorEmptySeries(t *testing.T) {
	d, err := NewEntityDetector(EntityConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	events, err := d.DetectSeries(nil)
	if err != nil || events != nil {
		t.Fatalf("events = %v, err = %v, want nil, nil", events, err)
	}
}

func TestNewEntityDetectorRejectsBadConfig(t *testing.T) {
	_, err := NewEntityDetector(EntityConfig{MaxDaysGap: -1}, nil)
	if !errors.Is(err, timeseries.ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}

	_, err = NewEntityDetector(EntityConfig{Anomaly: anomaly.Config{Method: "psychic"}}, nil)
	if err == nil {
		t.Fatal("expected error for unknown anomaly method")
	}
}

func TestEntityDetectorSharedAcrossGoroutines(t *testing.T) {
	d, err := NewEntityDetector(EntityConfig{
		Anomaly: anomaly.Config{Method: anomaly.MethodIsolationForest, Seed: 7},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	long := make([]float64, 120)
	for i := range long {
		long[i] = 5 + float64(i%3)
	}
	long[60] = 90
	short := make([]float64, 15)
	for i := range short {
		short[i] = 3
	}
	short[9] = 40

	longSeries := series(t, "acme", long...)
	shortSeries := series(t, "globex", short...)

	wantLong, err := d.DetectSeries(longSeries)
	if err != nil {
		t.Fatal(err)
	}
	wantShort, err := d.DetectSeries(shortSeries)
	if err != nil {
		t.Fatal(err)
	}

	// interleave series of very different lengths through one shared
	// detector; results must match the serial runs
	var wg sync.WaitGroup
	errc := make(chan error, 40)
	for i := 0; i < 40; i++ {
		s, want := longSeries, wantLong
		if i%2 == 1 {
			s, want = shortSeries, wantShort
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.DetectSeries(s)
			if err != nil {
				errc <- fmt.Errorf("%s: %v", s.Entity, err)
				return
			}
			if len(got) != len(want) {
				errc <- fmt.Errorf("%s: %d events, want %d", s.Entity, len(got), len(want))
			}
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Error(err)
	}
}
