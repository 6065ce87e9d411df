// Package store persists the mention corpus and analysis results in SQLite
// and serves the daily-count queries the analysis layer consumes.
package store

import (
	"context"
	"time"

	"github.com/mentionpulse/mentionpulse-analytics/internal/events"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// ArticleRecord is one corpus document.
type ArticleRecord struct {
	ID        string
	Title     string
	Source    string
	URL       string
	Published time.Time
	Themes    []string
}

// MentionRecord ties an entity to an article on a day.
type MentionRecord struct {
	Entity    string
	ArticleID string
	Date      time.Time
}

// MentionStore ingests the corpus and serves per-entity daily counts.
type MentionStore interface {
	timeseries.Provider

	SaveArticle(ctx context.Context, a *ArticleRecord) error
	SaveMentions(ctx context.Context, mentions []MentionRecord) error
	Entities(ctx context.Context) ([]string, error)
}

// CorpusStore answers the enrichment queries for cross-entity events.
type CorpusStore interface {
	events.Enricher
}

// EventStore persists analysis output.
type EventStore interface {
	SaveCombinedEvents(ctx context.Context, evs []events.CombinedEvent) error
	SaveCrossEntityEvents(ctx context.Context, evs []events.CrossEntityEvent) error
	CombinedEvents(ctx context.Context, entity string, from, to time.Time) ([]events.CombinedEvent, error)
}

// Store is the full persistence surface.
type Store interface {
	MentionStore
	CorpusStore
	EventStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}
