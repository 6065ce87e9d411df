package events

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mentionpulse/mentionpulse-analytics/internal/burst"
	"github.com/mentionpulse/mentionpulse-analytics/internal/correlation"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// Article is a representative source document for a cross-entity event.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
}

// CoMention is the number of articles mentioning both entities in a window.
type CoMention struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// Enricher supplies corpus context for a cross-entity event window.
// Implementations may be absent; a nil Enricher leaves those fields empty.
type Enricher interface {
	CoMentions(ctx context.Context, entities []string, from, to time.Time) ([]CoMention, error)
	TopThemes(ctx context.Context, entities []string, from, to time.Time, limit int) ([]string, error)
	TopSources(ctx context.Context, entities []string, from, to time.Time, limit int) ([]string, error)
	Articles(ctx context.Context, entities []string, from, to time.Time, limit int) ([]Article, error)
}

// CrossEntityEvent is a window in which multiple entities burst together.
type CrossEntityEvent struct {
	ID           string         `json:"id"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	PeakDate     time.Time      `json:"peak_date"`
	Entities     []string       `json:"entities"`
	EntityCounts map[string]int `json:"entity_counts"`
	CoMentions   []CoMention    `json:"co_mentions,omitempty"`
	Themes       []string       `json:"themes,omitempty"`
	Sources      []string       `json:"sources,omitempty"`
	Articles     []Article      `json:"articles,omitempty"`
}

// CorrelationReport is the static correlation analysis over an entity set.
type CorrelationReport struct {
	Pairs       []correlation.Result `json:"pairs"`
	Matrix      *correlation.Matrix  `json:"matrix"`
	Communities [][]string           `json:"communities"`
}

// MultiConfig parameterizes a MultiDetector.
type MultiConfig struct {
	Correlation correlation.Config
	Burst       burst.Config
	// MaxDaysGap merges nearby per-entity bursts into one cross-entity
	// window. Default 3.
	MaxDaysGap int
	// MaxLag bounds the lagged correlation search for causal extraction.
	// Default 7.
	MaxLag int
	// EnrichLimit caps themes, sources, and articles per event. Default 5.
	EnrichLimit int
}

func (c *MultiConfig) applyDefaults() {
	if c.MaxDaysGap == 0 {
		c.MaxDaysGap = 3
	}
	if c.MaxLag == 0 {
		c.MaxLag = 7
	}
	if c.EnrichLimit == 0 {
		c.EnrichLimit = 5
	}
}

// MultiDetector runs correlation, co-burst, and causal analysis across an
// entity set. The three operations are independent; callers invoke any
// subset.
type MultiDetector struct {
	cfg      MultiConfig
	analyzer *correlation.Analyzer
	burst    *burst.Detector
	enricher Enricher
	logger   *zap.Logger
}

// NewMultiDetector validates the config. The enricher may be nil.
func NewMultiDetector(cfg MultiConfig, enricher Enricher, logger *zap.Logger) (*MultiDetector, error) {
	cfg.applyDefaults()
	if cfg.MaxDaysGap < 1 {
		return nil, fmt.Errorf("%w: max days gap %d must be >= 1", timeseries.ErrInvalidParameter, cfg.MaxDaysGap)
	}
	if cfg.MaxLag < 1 {
		return nil, fmt.Errorf("%w: max lag %d must be >= 1", timeseries.ErrInvalidParameter, cfg.MaxLag)
	}
	ca, err := correlation.New(cfg.Correlation)
	if err != nil {
		return nil, fmt.Errorf("multi detector: %w", err)
	}
	bd, err := burst.New(cfg.Burst)
	if err != nil {
		return nil, fmt.Errorf("multi detector: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiDetector{cfg: cfg, analyzer: ca, burst: bd, enricher: enricher, logger: logger}, nil
}

// Correlations reports correlated pairs, the full matrix, and modularity
// communities for the entity set.
func (d *MultiDetector) Correlations(ctx context.Context, p timeseries.Provider, entities []string, from, to time.Time) (*CorrelationReport, error) {
	series, err := fetchAll(ctx, p, entities, from, to)
	if err != nil {
		return nil, err
	}
	net := d.analyzer.BuildNetwork(series, true)
	return &CorrelationReport{
		Pairs:       d.analyzer.CorrelatedPairs(series),
		Matrix:      d.analyzer.CorrelationMatrix(series),
		Communities: correlation.Communities(net),
	}, nil
}

// CoBursts finds windows where two or more entities burst together and
// enriches each with corpus context when an enricher is present.
func (d *MultiDetector) CoBursts(ctx context.Context, p timeseries.Provider, entities []string, from, to time.Time) ([]CrossEntityEvent, error) {
	series, err := fetchAll(ctx, p, entities, from, to)
	if err != nil {
		return nil, err
	}

	byEntity := make(map[string][]burst.Event, len(series))
	bySeries := make(map[string]*timeseries.EntityTimeSeries, len(series))
	for _, s := range series {
		byEntity[s.Entity] = d.burst.DetectEvents(s)
		bySeries[s.Entity] = s
	}

	var out []CrossEntityEvent
	for _, cb := range d.burst.DetectCrossEntity(byEntity) {
		ev := CrossEntityEvent{
			ID:           uuid.NewString(),
			Start:        cb.Start,
			End:          cb.End,
			Entities:     cb.Entities,
			EntityCounts: make(map[string]int, len(cb.Entities)),
		}
		peakValue := -1.0
		for _, name := range cb.Entities {
			ev.EntityCounts[name] = windowTotal(bySeries[name], cb.Start, cb.End)
			for _, be := range byEntity[name] {
				if be.PeakDate.Before(cb.Start) || be.PeakDate.After(cb.End) {
					continue
				}
				if be.PeakValue > peakValue {
					peakValue = be.PeakValue
					ev.PeakDate = be.PeakDate
				}
			}
		}
		if ev.PeakDate.IsZero() {
			ev.PeakDate = cb.Start
		}
		d.enrich(ctx, &ev)
		out = append(out, ev)
	}
	return out, nil
}

// CausalNetwork extracts lead/lag relationships ranked by |correlation|.
func (d *MultiDetector) CausalNetwork(ctx context.Context, p timeseries.Provider, entities []string, from, to time.Time) ([]correlation.Causal, error) {
	series, err := fetchAll(ctx, p, entities, from, to)
	if err != nil {
		return nil, err
	}
	return d.analyzer.CausalRelationships(series, d.cfg.MaxLag), nil
}

// enrich fills the corpus-context fields. Enrichment failures degrade to an
// unenriched event rather than failing the analysis.
func (d *MultiDetector) enrich(ctx context.Context, ev *CrossEntityEvent) {
	if d.enricher == nil {
		return
	}
	var err error
	if ev.CoMentions, err = d.enricher.CoMentions(ctx, ev.Entities, ev.Start, ev.End); err != nil {
		d.logger.Warn("co-mention enrichment failed", zap.Error(err))
	} else {
		sortCoMentions(ev.CoMentions)
	}
	if ev.Themes, err = d.enricher.TopThemes(ctx, ev.Entities, ev.Start, ev.End, d.cfg.EnrichLimit); err != nil {
		d.logger.Warn("theme enrichment failed", zap.Error(err))
	}
	if ev.Sources, err = d.enricher.TopSources(ctx, ev.Entities, ev.Start, ev.End, d.cfg.EnrichLimit); err != nil {
		d.logger.Warn("source enrichment failed", zap.Error(err))
	}
	if ev.Articles, err = d.enricher.Articles(ctx, ev.Entities, ev.Start, ev.End, d.cfg.EnrichLimit); err != nil {
		d.logger.Warn("article enrichment failed", zap.Error(err))
	}
}

// fetchAll loads every entity's series on a bounded worker pool. Results
// keep the caller's entity order.
func fetchAll(ctx context.Context, p timeseries.Provider, entities []string, from, to time.Time) ([]*timeseries.EntityTimeSeries, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", timeseries.ErrInvalidParameter)
	}
	out := make([]*timeseries.EntityTimeSeries, len(entities))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range entities {
		g.Go(func() error {
			s, err := p.Series(gctx, name, from, to)
			if err != nil {
				return fmt.Errorf("fetch %q: %w", name, err)
			}
			mu.Lock()
			out[i] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// windowTotal sums the series' counts inside [start, end].
func windowTotal(s *timeseries.EntityTimeSeries, start, end time.Time) int {
	if s == nil {
		return 0
	}
	total := 0.0
	for _, pt := range s.Points {
		if pt.Date.Before(start) || pt.Date.After(end) {
			continue
		}
		total += pt.Count
	}
	return int(total)
}

// sortCoMentions orders pair counts descending for stable reporting.
func sortCoMentions(pairs []CoMention) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Count > pairs[j].Count })
}
