package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store is a durable byte-oriented key-value store with optional TTL. The
// token mirror, and anything else that must survive a process restart, is
// written through this interface so it can be backed by memory, SQLite,
// Redis or PostgreSQL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores that hold connections or file handles.
type Closer interface {
	Close() error
}

// Close releases s if it implements Closer.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

// MultiSetter is implemented by stores that can write several keys in a
// single round trip.
type MultiSetter interface {
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
}

// SetMany writes values through s, batching when the store supports it.
func SetMany(ctx context.Context, s Store, values map[string][]byte, ttl time.Duration) error {
	if m, ok := s.(MultiSetter); ok {
		return m.SetMany(ctx, values, ttl)
	}
	for k, v := range values {
		if err := s.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}
