// Package postgres keeps the durable key-value mirror in PostgreSQL for
// deployments that already run one.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var ErrMissingDSN = errors.New("postgres: DSN is required")

// Options configures the connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type Option func(*Options)

// WithDSN sets the lib/pq connection string.
func WithDSN(dsn string) Option {
	return func(o *Options) { o.DSN = dsn }
}

// WithPool sizes the pool. Non-positive values keep the defaults.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(o *Options) {
		if maxOpen > 0 {
			o.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			o.MaxIdleConns = min(maxIdle, o.MaxOpenConns)
		}
		if lifetime > 0 {
			o.ConnMaxLifetime = lifetime
		}
	}
}

func WithPingTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PingTimeout = d
		}
	}
}

// The token mirror issues a handful of queries per authentication.
func defaultOptions() Options {
	return Options{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Open connects and pings within the ping timeout.
func Open(ctx context.Context, opts ...Option) (*sql.DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.DSN == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// OpenKVStore connects, migrates and returns a store that owns the connection.
func OpenKVStore(ctx context.Context, opts ...Option) (*KVStore, error) {
	db, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := NewKVStore(db)
	store.owned = true
	return store, nil
}
