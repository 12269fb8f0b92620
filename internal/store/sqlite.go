package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the ledger at path (":memory:" for a private in-memory database)
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			created_at_unix_ms BIGINT NOT NULL,
			observations INTEGER NOT NULL,
			suggestions INTEGER NOT NULL,
			min_distance DOUBLE,
			breached INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS batches_created_at ON batches (created_at_unix_ms);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, rec *Record) error {
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("batch id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal batch %s: %w", id, err)
	}
	breached := 0
	if rec.Batch.Diversity.Breached {
		breached = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (id, created_at_unix_ms, observations, suggestions, min_distance, breached, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.Batch.CreatedAt.UnixMilli(),
		rec.Observations,
		len(rec.Batch.Suggestions),
		rec.Batch.Diversity.MinDistance,
		breached,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM batches WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query batch %s: %w", id, err)
	}
	return decodeRecord(payload)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM batches ORDER BY created_at_unix_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRecord(payload string) (*Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &rec, nil
}
