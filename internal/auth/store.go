package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store persists issued identities keyed by product key.
type Store interface {
	Load(ctx context.Context, productKey string) (Identity, error)
	Save(ctx context.Context, id Identity) error
	Delete(ctx context.Context, productKey string) error
}

// SQLiteStore implements Store using the device_identities table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed identity store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns the saved identity for productKey, or ErrIdentityNotFound.
func (s *SQLiteStore) Load(ctx context.Context, productKey string) (Identity, error) {
	id := Identity{ProductKey: productKey}
	err := s.db.QueryRowContext(ctx,
		`SELECT device_id, device_secret FROM device_identities WHERE product_key = ?`,
		productKey,
	).Scan(&id.DeviceID, &id.DeviceSecret)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("loading identity: %w", err)
	}
	return id, nil
}

// Save inserts or replaces the identity for its product key.
func (s *SQLiteStore) Save(ctx context.Context, id Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_identities (product_key, device_id, device_secret, registered_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(product_key) DO UPDATE SET
		   device_id = excluded.device_id,
		   device_secret = excluded.device_secret,
		   updated_at = excluded.updated_at`,
		id.ProductKey, id.DeviceID, id.DeviceSecret, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}

// Delete removes the identity for productKey. Deleting a missing identity
// returns ErrIdentityNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, productKey string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM device_identities WHERE product_key = ?`, productKey)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	if n == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// Cached serves identities from a Store and falls back to another
// Authenticator on a miss, saving what it issues.
type Cached struct {
	next   Authenticator
	store  Store
	logger Logger
}

// NewCached wraps next with store. logger may be nil.
func NewCached(next Authenticator, store Store, logger Logger) *Cached {
	return &Cached{next: next, store: store, logger: logger}
}

// Register implements Authenticator.
//
// A store read failure other than a miss is logged and treated as a miss.
// A failure to save a freshly issued identity is logged and does not fail
// the registration.
func (c *Cached) Register(ctx context.Context, cfg RegisterConfig) (Identity, error) {
	id, err := c.store.Load(ctx, cfg.ProductKey)
	switch {
	case err == nil && id.Validate() == nil:
		return id, nil
	case err != nil && !errors.Is(err, ErrIdentityNotFound):
		c.warn("identity cache read failed", "product_key", cfg.ProductKey, "error", err)
	}

	id, err = c.next.Register(ctx, cfg)
	if err != nil {
		return Identity{}, err
	}

	if saveErr := c.store.Save(ctx, id); saveErr != nil {
		c.warn("identity cache write failed", "product_key", id.ProductKey, "error", saveErr)
	}
	return id, nil
}

// Forget drops the cached identity so the next Register re-registers.
func (c *Cached) Forget(ctx context.Context, productKey string) error {
	err := c.store.Delete(ctx, productKey)
	if errors.Is(err, ErrIdentityNotFound) {
		return nil
	}
	return err
}

func (c *Cached) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
