package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionpulse/mentionpulse-analytics/internal/config"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeProvider map[string]*timeseries.EntityTimeSeries

func (p fakeProvider) Series(_ context.Context, entity string, _, _ time.Time) (*timeseries.EntityTimeSeries, error) {
	s, ok := p[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", timeseries.ErrEntityNotFound, entity)
	}
	return s, nil
}

func makeSeries(entity string, values []float64) *timeseries.EntityTimeSeries {
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Date: testStart.AddDate(0, 0, i), Count: v}
	}
	return &timeseries.EntityTimeSeries{Entity: entity, Points: points}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Analysis.AnomalyMethod = "z_score"
	return cfg
}

func TestAnalyzeEntity(t *testing.T) {
	values := make([]float64, 42)
	for i := range values {
		values[i] = 10 + 0.5*float64(i) + 3*float64(i%7)
	}
	p := fakeProvider{"acme": makeSeries("acme", values)}

	pipe, err := New(testConfig(), p, nil, nil)
	require.NoError(t, err)

	report, err := pipe.AnalyzeEntity(context.Background(), "acme", testStart, testStart.AddDate(0, 0, 41))
	require.NoError(t, err)

	assert.Equal(t, "acme", report.Entity)
	assert.Greater(t, report.Summary.Mean, 0.0)
	require.NotNil(t, report.Forecast)
	assert.Len(t, report.Forecast.Points, 14)
	assert.Len(t, report.Forecast.Succeeded, 5)
}

func TestAnalyzeEntityUnknown(t *testing.T) {
	pipe, err := New(testConfig(), fakeProvider{}, nil, nil)
	require.NoError(t, err)

	_, err = pipe.AnalyzeEntity(context.Background(), "nobody", testStart, testStart.AddDate(0, 0, 10))
	assert.ErrorIs(t, err, timeseries.ErrEntityNotFound)
}

func TestAnalyzeBatch(t *testing.T) {
	spiky := []float64{2, 2, 2, 2, 20, 30, 2, 2, 2, 2, 2, 2}
	flat := []float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	p := fakeProvider{
		"acme":    makeSeries("acme", spiky),
		"globex":  makeSeries("globex", spiky),
		"initech": makeSeries("initech", flat),
	}

	pipe, err := New(testConfig(), p, nil, nil)
	require.NoError(t, err)

	batch, err := pipe.AnalyzeBatch(context.Background(), []string{"acme", "globex", "initech"},
		testStart, testStart.AddDate(0, 0, 11))
	require.NoError(t, err)

	require.Len(t, batch.Entities, 3)
	// report order follows the requested entity order
	assert.Equal(t, "acme", batch.Entities[0].Entity)
	assert.Equal(t, "globex", batch.Entities[1].Entity)
	assert.Equal(t, "initech", batch.Entities[2].Entity)

	require.NotNil(t, batch.Correlations)
	assert.NotEmpty(t, batch.Correlations.Pairs)

	require.Len(t, batch.CoBursts, 1)
	assert.Equal(t, []string{"acme", "globex"}, batch.CoBursts[0].Entities)
}

func TestAnalyzeBatchSingleEntitySkipsCrossPasses(t *testing.T) {
	p := fakeProvider{"acme": makeSeries("acme", []float64{1, 2, 3, 4, 5, 6, 7, 8})}

	pipe, err := New(testConfig(), p, nil, nil)
	require.NoError(t, err)

	batch, err := pipe.AnalyzeBatch(context.Background(), []string{"acme"}, testStart, testStart.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Nil(t, batch.Correlations)
	assert.Nil(t, batch.CoBursts)
	assert.Nil(t, batch.Causal)
}

func TestAnalyzeBatchNoEntities(t *testing.T) {
	pipe, err := New(testConfig(), fakeProvider{}, nil, nil)
	require.NoError(t, err)

	_, err = pipe.AnalyzeBatch(context.Background(), nil, testStart, testStart.AddDate(0, 0, 7))
	assert.ErrorIs(t, err, timeseries.ErrInvalidParameter)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.AnomalyMethod = "psychic"

	_, err := New(cfg, fakeProvider{}, nil, nil)
	assert.Error(t, err)
}

func TestAnalyzeBatchMixedSeriesLengths(t *testing.T) {
	long := make([]float64, 120)
	for i := range long {
		long[i] = 10 + 0.5*float64(i) + 3*float64(i%7)
	}
	long[60] = 200
	short := []float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 40, 3, 3, 3, 3, 3}

	p := fakeProvider{}
	var names []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("entity-%02d", i)
		values := long
		if i%2 == 1 {
			values = short
		}
		p[name] = makeSeries(name, values)
		names = append(names, name)
	}

	cfg := testConfig()
	cfg.Analysis.AnomalyMethod = "isolation_forest"
	cfg.Analysis.Workers = 8

	pipe, err := New(cfg, p, nil, nil)
	require.NoError(t, err)

	batch, err := pipe.AnalyzeBatch(context.Background(), names,
		testStart, testStart.AddDate(0, 0, 119))
	require.NoError(t, err)

	require.Len(t, batch.Entities, len(names))
	for i, r := range batch.Entities {
		require.NotNil(t, r)
		assert.Equal(t, names[i], r.Entity)
	}
}
