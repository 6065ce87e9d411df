package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/mentionpulse/mentionpulse-analytics/internal/events"
	"github.com/mentionpulse/mentionpulse-analytics/internal/timeseries"
)

// schema versions are tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS articles (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    published   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published DESC);
CREATE INDEX IF NOT EXISTS idx_articles_source    ON articles(source);

CREATE TABLE IF NOT EXISTS article_themes (
    article_id  TEXT NOT NULL,
    theme       TEXT NOT NULL,
    PRIMARY KEY (article_id, theme),
    FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_article_themes_theme ON article_themes(theme);

CREATE TABLE IF NOT EXISTS entities (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS mentions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id   INTEGER NOT NULL,
    article_id  TEXT NOT NULL,
    day         DATETIME NOT NULL,
    FOREIGN KEY (entity_id)  REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_mentions_entity_day ON mentions(entity_id, day);
CREATE INDEX IF NOT EXISTS idx_mentions_article    ON mentions(article_id);
`,
	},
	// Migration 2: persisted analysis output.
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS combined_events (
    id          TEXT PRIMARY KEY,
    entity      TEXT NOT NULL,
    day         DATETIME NOT NULL,
    value       REAL NOT NULL DEFAULT 0.0,
    score       REAL NOT NULL DEFAULT 0.0,
    methods     TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_combined_events_entity_day ON combined_events(entity, day);

CREATE TABLE IF NOT EXISTS cross_entity_events (
    id          TEXT PRIMARY KEY,
    start_day   DATETIME NOT NULL,
    end_day     DATETIME NOT NULL,
    peak_day    DATETIME NOT NULL,
    entities    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cross_entity_events_start ON cross_entity_events(start_day);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at the given path and runs
// all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Ingest ──────────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveArticle(ctx context.Context, a *ArticleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO articles(id, title, source, url, published)
        VALUES(?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            title     = excluded.title,
            source    = excluded.source,
            url       = excluded.url,
            published = excluded.published
    `, a.ID, a.Title, a.Source, a.URL, a.Published.UTC())
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM article_themes WHERE article_id=?`, a.ID); err != nil {
		return fmt.Errorf("delete themes: %w", err)
	}
	for _, theme := range a.Themes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO article_themes(article_id, theme) VALUES(?,?)`, a.ID, theme); err != nil {
			return fmt.Errorf("insert theme: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) SaveMentions(ctx context.Context, mentions []MentionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range mentions {
		id, err := upsertEntity(ctx, tx, m.Entity)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO mentions(entity_id, article_id, day) VALUES(?,?,?)`,
			id, m.ArticleID, timeseries.Day(m.Date))
		if err != nil {
			return fmt.Errorf("insert mention: %w", err)
		}
	}
	return tx.Commit()
}

func upsertEntity(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO entities(name) VALUES(?)`, name); err != nil {
		return 0, fmt.Errorf("upsert entity: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM entities WHERE name=?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup entity %q: %w", name, err)
	}
	return id, nil
}

func (s *sqliteStore) Entities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM entities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ─── Daily counts ────────────────────────────────────────────────────────────

// Series returns the entity's daily mention counts over [from, to], with
// missing days zero-filled. A zero from or to is unbounded on that side; the
// missing bound is taken from the entity's first or last stored mention day.
// A bounded range the entity has no mentions in still spans [from, to] with
// every day zero. An unknown entity is a hard error.
func (s *sqliteStore) Series(ctx context.Context, entity string, from, to time.Time) (*timeseries.EntityTimeSeries, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM entities WHERE name=?`, entity).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", timeseries.ErrEntityNotFound, entity)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup entity %q: %w", entity, err)
	}

	from, to = timeseries.Day(from), timeseries.Day(to)
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", timeseries.ErrInvalidParameter)
	}
	if from.IsZero() || to.IsZero() {
		var err error
		if from, to, err = s.resolveSpan(ctx, id, entity, from, to); err != nil {
			return nil, err
		}
		// no stored mentions to derive the missing bound from, or the stored
		// span falls entirely outside the given bound
		if from.IsZero() || to.Before(from) {
			return &timeseries.EntityTimeSeries{Entity: entity}, nil
		}
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT day, COUNT(*) FROM mentions
        WHERE entity_id=? AND day BETWEEN ? AND ?
        GROUP BY day ORDER BY day
    `, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	defer rows.Close()

	var points []timeseries.Point
	for rows.Next() {
		var ts string
		var count int
		if err := rows.Scan(&ts, &count); err != nil {
			return nil, err
		}
		day, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse day %q: %w", ts, err)
		}
		points = append(points, timeseries.Point{Date: day, Count: float64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return timeseries.Reindex(entity, points, from, to), nil
}

// resolveSpan fills zero bounds from the entity's stored mention days. Both
// bounds come back zero when the entity has no mentions at all.
func (s *sqliteStore) resolveSpan(ctx context.Context, id int64, entity string, from, to time.Time) (time.Time, time.Time, error) {
	var minDay, maxDay sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(day), MAX(day) FROM mentions WHERE entity_id=?`, id).Scan(&minDay, &maxDay)
	if err != nil {
		return from, to, fmt.Errorf("span for %q: %w", entity, err)
	}
	if !minDay.Valid || !maxDay.Valid {
		return time.Time{}, time.Time{}, nil
	}
	if from.IsZero() {
		d, err := parseTime(minDay.String)
		if err != nil {
			return from, to, fmt.Errorf("parse day %q: %w", minDay.String, err)
		}
		from = timeseries.Day(d)
	}
	if to.IsZero() {
		d, err := parseTime(maxDay.String)
		if err != nil {
			return from, to, fmt.Errorf("parse day %q: %w", maxDay.String, err)
		}
		to = timeseries.Day(d)
	}
	return from, to, nil
}

// ─── Enrichment ──────────────────────────────────────────────────────────────

func (s *sqliteStore) CoMentions(ctx context.Context, entities []string, from, to time.Time) ([]events.CoMention, error) {
	from, to = timeseries.Day(from), timeseries.Day(to)
	var out []events.CoMention
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			var count int
			err := s.db.QueryRowContext(ctx, `
                SELECT COUNT(DISTINCT m1.article_id)
                FROM mentions m1
                JOIN mentions m2 ON m1.article_id = m2.article_id
                JOIN entities e1 ON m1.entity_id = e1.id
                JOIN entities e2 ON m2.entity_id = e2.id
                WHERE e1.name=? AND e2.name=? AND m1.day BETWEEN ? AND ?
            `, entities[i], entities[j], from, to).Scan(&count)
			if err != nil {
				return nil, fmt.Errorf("count co-mentions: %w", err)
			}
			if count > 0 {
				out = append(out, events.CoMention{A: entities[i], B: entities[j], Count: count})
			}
		}
	}
	return out, nil
}

func (s *sqliteStore) TopThemes(ctx context.Context, entities []string, from, to time.Time, limit int) ([]string, error) {
	query := fmt.Sprintf(`
        SELECT t.theme, COUNT(*) AS n
        FROM article_themes t
        JOIN mentions m  ON m.article_id = t.article_id
        JOIN entities e  ON m.entity_id = e.id
        WHERE e.name IN (%s) AND m.day BETWEEN ? AND ?
        GROUP BY t.theme ORDER BY n DESC, t.theme LIMIT ?
    `, placeholders(len(entities)))
	return s.queryStrings(ctx, query, entityArgs(entities, from, to, limit)...)
}

func (s *sqliteStore) TopSources(ctx context.Context, entities []string, from, to time.Time, limit int) ([]string, error) {
	query := fmt.Sprintf(`
        SELECT a.source, COUNT(*) AS n
        FROM articles a
        JOIN mentions m  ON m.article_id = a.id
        JOIN entities e  ON m.entity_id = e.id
        WHERE e.name IN (%s) AND m.day BETWEEN ? AND ? AND a.source != ''
        GROUP BY a.source ORDER BY n DESC, a.source LIMIT ?
    `, placeholders(len(entities)))
	return s.queryStrings(ctx, query, entityArgs(entities, from, to, limit)...)
}

func (s *sqliteStore) Articles(ctx context.Context, entities []string, from, to time.Time, limit int) ([]events.Article, error) {
	query := fmt.Sprintf(`
        SELECT a.id, a.title, a.source, a.url, a.published, COUNT(DISTINCT m.entity_id) AS n
        FROM articles a
        JOIN mentions m ON m.article_id = a.id
        JOIN entities e ON m.entity_id = e.id
        WHERE e.name IN (%s) AND m.day BETWEEN ? AND ?
        GROUP BY a.id ORDER BY n DESC, a.published DESC LIMIT ?
    `, placeholders(len(entities)))

	rows, err := s.db.QueryContext(ctx, query, entityArgs(entities, from, to, limit)...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []events.Article
	for rows.Next() {
		var a events.Article
		var ts string
		var n int
		if err := rows.Scan(&a.ID, &a.Title, &a.Source, &a.URL, &ts, &n); err != nil {
			return nil, err
		}
		a.Published, _ = parseTime(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ─── Analysis output ─────────────────────────────────────────────────────────

func (s *sqliteStore) SaveCombinedEvents(ctx context.Context, evs []events.CombinedEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ev := range evs {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO combined_events(id, entity, day, value, score, methods, description)
            VALUES(?,?,?,?,?,?,?)
            ON CONFLICT(id) DO UPDATE SET
                value       = excluded.value,
                score       = excluded.score,
                methods     = excluded.methods,
                description = excluded.description
        `, ev.ID, ev.Entity, ev.Date.UTC(), ev.Value, ev.Score, strings.Join(ev.Methods, ","), ev.Description)
		if err != nil {
			return fmt.Errorf("upsert combined event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) SaveCrossEntityEvents(ctx context.Context, evs []events.CrossEntityEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ev := range evs {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO cross_entity_events(id, start_day, end_day, peak_day, entities)
            VALUES(?,?,?,?,?)
            ON CONFLICT(id) DO UPDATE SET
                start_day = excluded.start_day,
                end_day   = excluded.end_day,
                peak_day  = excluded.peak_day,
                entities  = excluded.entities
        `, ev.ID, ev.Start.UTC(), ev.End.UTC(), ev.PeakDate.UTC(), strings.Join(ev.Entities, ","))
		if err != nil {
			return fmt.Errorf("upsert cross-entity event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) CombinedEvents(ctx context.Context, entity string, from, to time.Time) ([]events.CombinedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, entity, day, value, score, methods, description
        FROM combined_events
        WHERE entity=? AND day BETWEEN ? AND ?
        ORDER BY day
    `, entity, timeseries.Day(from), timeseries.Day(to))
	if err != nil {
		return nil, fmt.Errorf("query combined events: %w", err)
	}
	defer rows.Close()

	var out []events.CombinedEvent
	for rows.Next() {
		var ev events.CombinedEvent
		var ts, methods string
		if err := rows.Scan(&ev.ID, &ev.Entity, &ts, &ev.Value, &ev.Score, &methods, &ev.Description); err != nil {
			return nil, err
		}
		ev.Date, _ = parseTime(ts)
		if methods != "" {
			ev.Methods = strings.Split(methods, ",")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *sqliteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func entityArgs(entities []string, from, to time.Time, limit int) []any {
	args := make([]any, 0, len(entities)+3)
	for _, e := range entities {
		args = append(args, e)
	}
	return append(args, timeseries.Day(from), timeseries.Day(to), limit)
}

// parseTime handles multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
