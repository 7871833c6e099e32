package configpush

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("configpush: entry not found")

// Entry is the last applied payload of one config key.
type Entry struct {
	Key       string
	Version   int
	Payload   string
	UpdatedAt time.Time
}

// Repository defines the interface for config version persistence.
type Repository interface {
	Get(ctx context.Context, key string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, e Entry) error
}

// SQLiteRepository implements Repository using the config_versions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed config repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the entry for key, or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, key string) (Entry, error) {
	const query = `SELECT config_key, version, payload, updated_at
		FROM config_versions WHERE config_key = ?`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("getting config %s: %w", key, err)
	}
	return e, nil
}

// List returns every entry ordered by key.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	const query = `SELECT config_key, version, payload, updated_at
		FROM config_versions ORDER BY config_key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating configs: %w", err)
	}
	return entries, nil
}

// Save inserts or replaces the entry for its key. A zero UpdatedAt is set
// to now.
func (r *SQLiteRepository) Save(ctx context.Context, e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("saving config: empty key")
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	const query = `INSERT INTO config_versions (config_key, version, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(config_key) DO UPDATE SET
		  version = excluded.version,
		  payload = excluded.payload,
		  updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		e.Key, e.Version, e.Payload, e.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving config %s: %w", e.Key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e       Entry
		updated string
	)
	if err := s.Scan(&e.Key, &e.Version, &e.Payload, &updated); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339, updated)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing updated_at %q: %w", updated, err)
	}
	e.UpdatedAt = t
	return e, nil
}
