package auth

import (
	"context"
	"errors"
	"time"

	"github.com/adeilh/go-trakt/cache"
)

// Durable key names. The layout is two string entries so other tools can read
// them: the raw token and its RFC 3339 expiry.
const (
	DefaultTokenKey  = "trakt_auth_token"
	DefaultExpiryKey = "trakt_auth_token_expires_at"
)

var errMirrorEmpty = errors.New("auth: no durable token")

// mirror keeps a copy of the last known-good token in a cache.Store.
type mirror struct {
	store     cache.Store
	tokenKey  string
	expiryKey string
}

func newMirror(store cache.Store, prefix string) *mirror {
	if store == nil {
		return nil
	}
	m := &mirror{store: store, tokenKey: DefaultTokenKey, expiryKey: DefaultExpiryKey}
	if prefix != "" {
		m.tokenKey = prefix + ":" + m.tokenKey
		m.expiryKey = prefix + ":" + m.expiryKey
	}
	return m
}

// load returns errMirrorEmpty when nothing usable is stored and an
// *InvalidExpiryError when the expiry entry is corrupt.
func (m *mirror) load(ctx context.Context) (Token, error) {
	if err := contextError(ctx); err != nil {
		return Token{}, err
	}
	raw, err := m.store.Get(ctx, m.tokenKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Token{}, errMirrorEmpty
		}
		return Token{}, err
	}
	rawExp, err := m.store.Get(ctx, m.expiryKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Token{}, errMirrorEmpty
		}
		return Token{}, err
	}
	exp, err := parseExpiry(string(rawExp))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: string(raw), ExpiresAt: exp}, nil
}

// save writes both entries. The store TTL tracks the token expiry so backends
// with native expiry drop stale tokens on their own.
func (m *mirror) save(ctx context.Context, tok Token, now time.Time) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	ttl := tok.ExpiresAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	return cache.SetMany(ctx, m.store, map[string][]byte{
		m.tokenKey:  []byte(tok.Value),
		m.expiryKey: []byte(tok.ExpiresAt.UTC().Format(time.RFC3339Nano)),
	}, ttl)
}

// clear removes both entries; missing keys are not an error.
func (m *mirror) clear(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{m.tokenKey, m.expiryKey} {
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func parseExpiry(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, &InvalidExpiryError{Value: value, Err: err}
	}
	return t, nil
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
