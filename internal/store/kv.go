// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// KeyValueStore is the capability interface the content and logging layers
// depend on. The SQLite implementation below is the only production backend,
// but tests and future object-storage backends can substitute their own.
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key with no expiry, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// PutWithTTL stores value under key; the entry becomes invisible after ttl.
	PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// List returns all live keys with the given prefix, in ascending key order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// KV is the SQLite-backed KeyValueStore.
type KV struct {
	db *sql.DB

	// now is swappable for tests.
	now func() time.Time
}

// NewKV creates a KeyValueStore over an open database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db, now: time.Now}
}

// Get implements KeyValueStore. Expired entries are treated as absent even
// before the purge job removes them.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt sql.NullInt64

	row := s.db.QueryRowContext(ctx, `SELECT v, expires_at FROM kv_entries WHERE k = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting key %q: %w", key, err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= s.now().UnixMilli() {
		return nil, ErrNotFound
	}

	return value, nil
}

// Put implements KeyValueStore.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, sql.NullInt64{})
}

// PutWithTTL implements KeyValueStore.
func (s *KV) PutWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
	return s.put(ctx, key, value, expiresAt)
}

func (s *KV) put(ctx context.Context, key string, value []byte, expiresAt sql.NullInt64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (k, v, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		key, value, expiresAt, s.now().UTC())
	if err != nil {
		return fmt.Errorf("putting key %q: %w", key, err)
	}
	return nil
}

// List implements KeyValueStore.
func (s *KV) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k FROM kv_entries
		WHERE k LIKE ? ESCAPE '\' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY k`,
		escapeLike(prefix)+"%", s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("listing prefix %q: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing prefix %q: %w", prefix, err)
	}

	return keys, nil
}

// Delete implements KeyValueStore.
func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE k = ?`, key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

// PurgeExpired physically removes entries whose expiry has passed.
// Returns the number of rows removed. Called by the scheduler.
func (s *KV) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purging expired entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Ping verifies the underlying database connection.
func (s *KV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// escapeLike escapes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
