package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/go-trakt/cache"
)

// Store implements cache.Store on top of a Redis server.
type Store struct {
	client *goredis.Client
	prefix string
}

// NewStore builds a Redis-backed store. No connection is made until first use;
// call Ping to fail fast on bad configuration.
func NewStore(opts Options) (*Store, error) {
	ro, err := opts.client()
	if err != nil {
		return nil, err
	}
	return &Store{client: goredis.NewClient(ro), prefix: opts.Prefix}, nil
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("redis: GET %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if ttl > 0 && ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis: DEL %s: %w", key, err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// SetMany writes several keys in one round trip. The token mirror uses it so
// the token and its expiry land together.
func (s *Store) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for k, v := range values {
			p.Set(ctx, s.key(k), v, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: pipeline: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}
