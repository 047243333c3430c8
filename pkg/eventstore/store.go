// Package eventstore provides optional SQLite-backed local persistence of
// tracker events, so hosts can inspect served configurations and metric
// emissions without access to the flag source's analytics backend.
package eventstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"aiconfig/pkg/ai"
	"aiconfig/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS ai_events (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	flag_key      TEXT NOT NULL,
	variation_key TEXT NOT NULL,
	version       INTEGER NOT NULL,
	context_key   TEXT NOT NULL,
	metric_value  REAL NOT NULL,
	data_json     TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_events_flag ON ai_events(flag_key, variation_key);
CREATE INDEX IF NOT EXISTS idx_ai_events_name ON ai_events(name);
`

// Store persists tracker events in a local SQLite database. It satisfies
// ai.EventSink; trackers treat it as strictly best-effort.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (and if needed creates) the event database at path.
func Open(path string, logger *logx.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		path,
	))
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping event store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize event store schema: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db, logger: logger.WithComponent("eventstore")}, nil
}

// RecordEvent implements ai.EventSink.
func (s *Store) RecordEvent(e ai.Event) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO ai_events (id, name, flag_key, variation_key, version,
			context_key, metric_value, data_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.Name, e.FlagKey, e.VariationKey, e.Version,
		e.ContextKey, e.MetricValue, string(dataJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// VariationSummary aggregates the recorded events of one served variation.
type VariationSummary struct {
	VariationKey string
	Generations  int
	Successes    int
	Errors       int
	TotalTokens  float64
}

// Summarize aggregates per-variation generation outcomes for one flag key.
func (s *Store) Summarize(flagKey string) ([]VariationSummary, error) {
	rows, err := s.db.Query(`
		SELECT variation_key,
			SUM(CASE WHEN name = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN name = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN name = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN name = ? THEN metric_value ELSE 0 END)
		FROM ai_events
		WHERE flag_key = ?
		GROUP BY variation_key
		ORDER BY variation_key`,
		ai.EventGeneration, ai.EventGenerationSuccess, ai.EventGenerationError,
		ai.EventTokensTotal, flagKey,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", flagKey, err)
	}
	defer func() { _ = rows.Close() }()

	var out []VariationSummary
	for rows.Next() {
		var v VariationSummary
		if err := rows.Scan(&v.VariationKey, &v.Generations, &v.Successes,
			&v.Errors, &v.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}
	return out, nil
}

// Events returns the most recent events for a flag key, newest first.
func (s *Store) Events(flagKey string, limit int) ([]ai.Event, error) {
	rows, err := s.db.Query(`
		SELECT name, flag_key, variation_key, version, context_key,
			metric_value, data_json
		FROM ai_events
		WHERE flag_key = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		flagKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", flagKey, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ai.Event
	for rows.Next() {
		var e ai.Event
		var dataJSON string
		if err := rows.Scan(&e.Name, &e.FlagKey, &e.VariationKey, &e.Version,
			&e.ContextKey, &e.MetricValue, &dataJSON); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
			s.logger.Warn("event data not decodable, dropping: %v", err)
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
