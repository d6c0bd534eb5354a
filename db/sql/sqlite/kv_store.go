// Package sqlite provides a file-backed cache.Store so authentication state
// survives restarts on a single host.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adeilh/go-trakt/cache"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS durable_kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NULL,
	updated_at INTEGER NOT NULL
);
`

// KVStore implements cache.Store on a SQLite database file.
type KVStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*KVStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the token read and write paths.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &KVStore{db: db, now: time.Now}, nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM durable_kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}

	if expiresAt.Valid && s.now().UnixMilli() >= expiresAt.Int64 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM durable_kv WHERE key = ? AND expires_at = ?`, key, expiresAt.Int64)
		return nil, cache.ErrNotFound
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO durable_kv (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)`,
		key, value, expiresAt, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM durable_kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Purge removes every expired row and returns how many were dropped.
func (s *KVStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM durable_kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *KVStore) Close() error {
	return s.db.Close()
}
