// Package sqlstore persists Response Validator / Request Router outcomes to
// sqlite, generalized from a prior single-table "completions" log (which
// recorded raw prompt/response text) into a metrics.Sink durable across
// restarts, so a deployment can audit fallback rate, retry counts, and
// latency history without an external collector.
package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tilecrawler/internal/metrics"
)

// Store is a sqlite-backed metrics.Sink.
type Store struct {
	db    *sql.DB
	onErr func(error)
}

// Open creates or attaches to the sqlite database at path and ensures the
// outcomes table exists.
func Open(path string, onErr func(error)) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	s := &Store{db: db, onErr: onErr}
	if s.onErr == nil {
		s.onErr = func(error) {}
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		kind TEXT NOT NULL,
		success INTEGER NOT NULL,
		fallback INTEGER NOT NULL,
		retries INTEGER NOT NULL,
		rate_limit_waits INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		tokens INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_kind ON outcomes(kind);
	CREATE INDEX IF NOT EXISTS idx_outcomes_timestamp ON outcomes(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordOutcome implements metrics.Sink. Write failures are reported to
// onErr rather than returned, since the interface's callers (Router,
// Validator) treat metrics recording as fire-and-forget.
func (s *Store) RecordOutcome(o metrics.Outcome) {
	_, err := s.db.Exec(`
		INSERT INTO outcomes (kind, success, fallback, retries, rate_limit_waits, latency_ms, tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.Kind, boolToInt(o.Success), boolToInt(o.Fallback), o.Retries, o.RateLimitWaits,
		o.Latency.Milliseconds(), o.Tokens)
	if err != nil {
		s.onErr(fmt.Errorf("sqlstore: record outcome: %w", err))
	}
}

// FallbackRate reports the fraction of recorded outcomes for kind that
// fell back to procedural content, over the trailing window duration.
func (s *Store) FallbackRate(kind string, window time.Duration) (float64, error) {
	cutoff := nowFunc().Add(-window).UTC().Format("2006-01-02 15:04:05")
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(fallback), 0)
		FROM outcomes
		WHERE kind = ? AND timestamp >= ?
	`, kind, cutoff)

	var total, fellBack int
	if err := row.Scan(&total, &fellBack); err != nil {
		return 0, fmt.Errorf("sqlstore: fallback rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(fellBack) / float64(total), nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nowFunc is overridable in tests that need a fixed clock.
var nowFunc = time.Now
