package cache

import (
	"sync"
	"time"
)

// Equal reports whether two cache keys address the same entry.
type Equal[K any] func(a, b K) bool

// Expiring is an in-memory key/value cache with a TTL per entry. Keys are
// matched with an Equal predicate instead of hashing, so callers can use
// struct keys and decide what "the same request" means.
//
// There is no capacity bound; entries leave only by expiring, Delete or Clear.
type Expiring[K comparable, V any] struct {
	mu      sync.Mutex
	entries []*Entry[K, V]
	equal   Equal[K]
	now     func() time.Time
}

// Entry is a single cached value. A zero TTL never expires.
type Entry[K comparable, V any] struct {
	Key       K
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// Valid reports whether the entry is still usable at the given instant.
func (e *Entry[K, V]) Valid(at time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return at.Before(e.CreatedAt.Add(e.TTL))
}

// ExpiringOption customizes an Expiring cache.
type ExpiringOption[K comparable, V any] func(*Expiring[K, V])

// WithClock sets the time source used for TTL bookkeeping.
func WithClock[K comparable, V any](now func() time.Time) ExpiringOption[K, V] {
	return func(c *Expiring[K, V]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEqual installs the key comparator at construction time.
func WithEqual[K comparable, V any](eq Equal[K]) ExpiringOption[K, V] {
	return func(c *Expiring[K, V]) {
		if eq != nil {
			c.equal = eq
		}
	}
}

// NewExpiring builds an empty cache comparing keys with ==.
func NewExpiring[K comparable, V any](opts ...ExpiringOption[K, V]) *Expiring[K, V] {
	c := &Expiring[K, V]{
		equal: func(a, b K) bool { return a == b },
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SetCompare replaces the key comparator. Entries stored under the previous
// comparator are kept and matched with the new one from now on.
func (c *Expiring[K, V]) SetCompare(eq Equal[K]) {
	if eq == nil {
		return
	}
	c.mu.Lock()
	c.equal = eq
	c.mu.Unlock()
}

// Get returns the live value for key. Expired entries are evicted on the way.
func (c *Expiring[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	i := c.indexLocked(key)
	if i < 0 {
		return zero, false
	}
	entry := c.entries[i]
	if !entry.Valid(c.now()) {
		c.removeLocked(i)
		return zero, false
	}
	return entry.Value, true
}

// Set inserts or replaces the value for key and restarts its TTL.
func (c *Expiring[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry[K, V]{Key: key, Value: value, CreatedAt: c.now(), TTL: ttl}
	if i := c.indexLocked(key); i >= 0 {
		c.entries[i] = entry
		return
	}
	c.entries = append(c.entries, entry)
}

// Delete drops key and reports whether an entry was present.
func (c *Expiring[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(key)
	if i < 0 {
		return false
	}
	c.removeLocked(i)
	return true
}

// Purge evicts every expired entry and returns how many were removed.
func (c *Expiring[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.Valid(now) {
			kept = append(kept, e)
		}
	}
	removed := len(c.entries) - len(kept)
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = nil
	}
	c.entries = kept
	return removed
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *Expiring[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Expiring[K, V]) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

func (c *Expiring[K, V]) indexLocked(key K) int {
	for i, e := range c.entries {
		if c.equal(e.Key, key) {
			return i
		}
	}
	return -1
}

func (c *Expiring[K, V]) removeLocked(i int) {
	last := len(c.entries) - 1
	copy(c.entries[i:], c.entries[i+1:])
	c.entries[last] = nil
	c.entries = c.entries[:last]
}
