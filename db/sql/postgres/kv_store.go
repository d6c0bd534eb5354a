package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adeilh/go-trakt/cache"
)

// KVTableSchema creates the table backing KVStore.
const KVTableSchema = `CREATE TABLE IF NOT EXISTS durable_kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ErrKVTableMissing is returned when the durable_kv table has not been created.
var ErrKVTableMissing = errors.New("postgres: durable_kv table missing")

// KVStore implements cache.Store on a PostgreSQL table. Expired rows are
// treated as absent and removed lazily.
type KVStore struct {
	db    *sql.DB
	now   func() time.Time
	owned bool
}

// NewKVStore wraps an existing *sql.DB connection.
func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value, expires_at FROM durable_kv WHERE key = $1`
	var (
		value     []byte
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, translateKVError(err)
	}
	if expiresAt.Valid && !s.now().Before(expiresAt.Time) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM durable_kv WHERE key = $1 AND expires_at = $2`, key, expiresAt.Time)
		return nil, cache.ErrNotFound
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.upsert(ctx, s.db, key, value, ttl)
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM durable_kv WHERE key = $1`, key)
	if err != nil {
		return translateKVError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// SetMany writes every value inside one transaction.
func (s *KVStore) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	for k, v := range values {
		if err := s.upsert(ctx, tx, k, v, ttl); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *KVStore) upsert(ctx context.Context, db execer, key string, value []byte, ttl time.Duration) error {
	const query = `INSERT INTO durable_kv (key, value, expires_at, updated_at)
                   VALUES ($1, $2, $3, $4)
                   ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	now := s.now().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}
	_, err := db.ExecContext(ctx, query, key, value, expiresAt, now)
	return translateKVError(err)
}

// Close closes the connection when the store opened it itself.
func (s *KVStore) Close() error {
	if s.owned && s.db != nil {
		return s.db.Close()
	}
	return nil
}

func translateKVError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01":
			return ErrKVTableMissing
		}
	}
	return fmt.Errorf("postgres: %w", err)
}
