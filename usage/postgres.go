// Package usage provides concrete implementations of the flowgate usage and
// stats collaborators: a Postgres-backed usage-event store, a Redis-backed
// stats store with milestone recomputation, and an in-memory store for tests
// and tooling.
package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id BIGSERIAL PRIMARY KEY,
	identity_id TEXT NOT NULL,
	workflow_id TEXT NOT NULL,
	safe_values JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS usage_events_identity_month
	ON usage_events (identity_id, created_at);`

// PostgresStore implements flowgate.UsageStore on a Postgres database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to Postgres with the given connection string
// and ensures the usage_events table exists.
func NewPostgresStore(connString string) (*PostgresStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("connection string not set")
	}
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CountThisMonth counts the identity's usage events with a timestamp on or
// after the first of the current calendar month.
func (s *PostgresStore) CountThisMonth(ctx context.Context, identityID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_events
		WHERE identity_id = $1
		  AND created_at >= date_trunc('month', now())`,
		identityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// RecordUsage inserts one usage event. Only the caller-filtered safe values
// are stored; the store never sees free-text content.
func (s *PostgresStore) RecordUsage(ctx context.Context, identityID, workflowID string, safeValues map[string]string, at time.Time) error {
	if safeValues == nil {
		safeValues = map[string]string{}
	}
	encoded, err := json.Marshal(safeValues)
	if err != nil {
		return fmt.Errorf("failed to marshal safe values: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_events (identity_id, workflow_id, safe_values, created_at)
		VALUES ($1, $2, $3, $4)`,
		identityID, workflowID, encoded, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}
	return nil
}
