// Package journal is the workers' local sqlite ledger: processed
// event hashes for dedup under at-least-once delivery, progress
// counters, and sync watermarks such as the comment-mirror cursor.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_events (
	hash         TEXT PRIMARY KEY,
	topic        TEXT NOT NULL,
	processed_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS watermarks (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Journal is the local ledger. Safe for concurrent use; sqlite
// serializes writers and busy_timeout absorbs contention.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (and if needed creates) the ledger database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close checkpoints the WAL and closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.db.Close()
		return fmt.Errorf("checkpoint journal: %w", err)
	}
	return j.db.Close()
}

// MarkProcessed records an event hash. It returns false when the
// hash was already recorded, which is the redelivery signal.
func (j *Journal) MarkProcessed(ctx context.Context, hash, topic string) (bool, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_events (hash, topic, processed_at) VALUES (?, ?, ?)`,
		hash, topic, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("record processed event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsProcessed reports whether an event hash was recorded.
func (j *Journal) IsProcessed(ctx context.Context, hash string) (bool, error) {
	var one int
	err := j.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_events WHERE hash = ?`, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed event: %w", err)
	}
	return true, nil
}

// Prune drops processed-event records older than the cutoff.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE processed_at < ?`,
		before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune processed events: %w", err)
	}
	return res.RowsAffected()
}

// AddCounter adds delta to a named progress counter.
func (j *Journal) AddCounter(ctx context.Context, name string, delta int64) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`,
		name, delta)
	if err != nil {
		return fmt.Errorf("update counter %s: %w", name, err)
	}
	return nil
}

// Counter reads a named counter; a missing counter is zero.
func (j *Journal) Counter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := j.db.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query counter %s: %w", name, err)
	}
	return value, nil
}

// SetWatermark stores a named cursor value.
func (j *Journal) SetWatermark(ctx context.Context, name, value string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO watermarks (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("set watermark %s: %w", name, err)
	}
	return nil
}

// Watermark reads a named cursor; missing means empty.
func (j *Journal) Watermark(ctx context.Context, name string) (string, error) {
	var value string
	err := j.db.QueryRowContext(ctx,
		`SELECT value FROM watermarks WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query watermark %s: %w", name, err)
	}
	return value, nil
}
