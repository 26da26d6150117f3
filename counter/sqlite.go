package counter

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS usage_counter (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	month_key TEXT NOT NULL,
	count INTEGER NOT NULL,
	session_id TEXT NOT NULL DEFAULT ''
);`

// SQLiteBackend stores the record in a single-row SQLite table. It is an
// alternative durable backend for hosts that already carry a local
// database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (creating if needed) the SQLite database at the
// given path and ensures the counter table exists.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("database path not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create counter table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close releases the underlying database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) Read() (Record, bool, error) {
	var record Record
	row := b.db.QueryRow(`SELECT month_key, count, session_id FROM usage_counter WHERE id = 1`)
	err := row.Scan(&record.MonthKey, &record.Count, &record.SessionID)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read counter row: %w", err)
	}
	return record, true, nil
}

func (b *SQLiteBackend) Write(record Record) error {
	_, err := b.db.Exec(`
		INSERT INTO usage_counter (id, month_key, count, session_id)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			month_key = excluded.month_key,
			count = excluded.count,
			session_id = excluded.session_id`,
		record.MonthKey, record.Count, record.SessionID)
	if err != nil {
		return fmt.Errorf("failed to write counter row: %w", err)
	}
	return nil
}
