package anomaly

import (
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// featureLags are the lag features used by the model-based strategies and
// the tree/kernel forecasters.
var featureLags = []int{1, 2, 3, 7}

// BuildFeatures builds the model feature matrix for a series: lag values at
// lags 1, 2, 3, and 7, a trailing rolling mean and standard deviation over
// the window, and a one-hot day-of-week block when the series carries real
// calendar dates. Rows that would need history before the series start are
// dropped; the returned indices map each feature row back to its series
// index.
func BuildFeatures(s *timeseries.EntityTimeSeries, window int) (features [][]float64, rows []int) {
	n := s.Len()
	maxLag := featureLags[len(featureLags)-1]
	if n <= maxLag {
		return nil, nil
	}
	values := s.Values()
	hasCalendar := !s.Points[0].Date.IsZero()

	for i := maxLag; i < n; i++ {
		row := make([]float64, 0, len(featureLags)+2+7)
		for _, lag := range featureLags {
			row = append(row, values[i-lag])
		}

		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		win := values[lo : i+1]
		row = append(row, timeseries.Mean(win), timeseries.Std(win))

		if hasCalendar {
			var dow [7]float64
			dow[int(s.Points[i].Date.Weekday())] = 1
			row = append(row, dow[:]...)
		}

		features = append(features, row)
		rows = append(rows, i)
	}
	return features, rows
}
