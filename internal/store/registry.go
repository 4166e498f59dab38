package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entry is one value held by the registry.
type Entry struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is a small durable key-value store scoped by namespace.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens (creating and migrating if needed) the registry at dbPath.
func OpenRegistry(dbPath string) (*Registry, error) {
	db, err := InitDBWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

// NewRegistry wraps an already initialized database.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Close releases the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Set stores value under namespace/key, replacing any previous value.
func (r *Registry) Set(ctx context.Context, namespace, key, value string) error {
	return r.SetWithin(ctx, defaultRetryWindow, namespace, key, value)
}

// SetWithin is Set with a bounded retry window for lock contention.
func (r *Registry) SetWithin(ctx context.Context, window time.Duration, namespace, key, value string) error {
	now := time.Now().UTC()
	err := RetryWithin(window, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO registry (namespace, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(namespace, key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, namespace, key, value, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get returns the entry stored under namespace/key or ErrNotFound.
func (r *Registry) Get(ctx context.Context, namespace, key string) (Entry, error) {
	e := Entry{Namespace: namespace, Key: key}
	err := r.db.QueryRowContext(ctx, `
		SELECT value, updated_at
		FROM registry
		WHERE namespace = ? AND key = ?
	`, namespace, key).Scan(&e.Value, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	return e, nil
}

// Delete removes namespace/key. Deleting a missing key is not an error.
func (r *Registry) Delete(ctx context.Context, namespace, key string) error {
	err := Transact(ctx, r.db, defaultRetryWindow, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM registry WHERE namespace = ? AND key = ?`, namespace, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys lists the keys stored under namespace in ascending order.
func (r *Registry) Keys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := queryStringColumn(ctx, r.db, `SELECT key FROM registry WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", namespace, err)
	}
	return keys, nil
}

// Ping verifies the database answers queries.
func (r *Registry) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// SchemaVersion reports the applied and latest migration versions.
func (r *Registry) SchemaVersion() (current, latest int64, err error) {
	return SchemaVersion(r.db)
}
