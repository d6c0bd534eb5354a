package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adeilh/go-trakt/cache"
)

// Outcomes reported to Recorder.AuthAttempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeShared  = "shared"
	OutcomeResumed = "resumed"
)

const flightKey = "authenticate"

// TokenStore holds the current bearer token. It is safe for concurrent use;
// at most one authentication round trip is in flight at a time and every
// caller arriving meanwhile receives that round trip's outcome.
type TokenStore struct {
	mu      sync.RWMutex
	current Token

	mirror    *mirror
	challenge ChallengeProvider
	exchanger Exchanger
	siteKey   string

	flight         singleflight.Group
	authenticating atomic.Bool

	now      func() time.Time
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a TokenStore.
type Option func(*TokenStore)

// WithDurableStore mirrors the token into store so a restarted process can
// resume an unexpired session.
func WithDurableStore(store cache.Store, prefix string) Option {
	return func(s *TokenStore) {
		s.mirror = newMirror(store, prefix)
	}
}

// WithSiteKey sets the key passed to the challenge provider.
func WithSiteKey(key string) Option {
	return func(s *TokenStore) { s.siteKey = key }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *TokenStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder reports authentication outcomes.
func WithRecorder(r Recorder) Option {
	return func(s *TokenStore) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewTokenStore builds an unauthenticated store.
func NewTokenStore(exchanger Exchanger, challenge ChallengeProvider, opts ...Option) (*TokenStore, error) {
	if exchanger == nil {
		return nil, ErrMissingExchanger
	}
	if challenge == nil {
		return nil, ErrMissingChallenge
	}
	s := &TokenStore{
		challenge: challenge,
		exchanger: exchanger,
		now:       time.Now,
		logger:    slog.Default(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// State reports where the store is in its lifecycle.
func (s *TokenStore) State() State {
	if s.authenticating.Load() {
		return StateAuthenticating
	}
	if _, ok := s.Current(); ok {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Current returns the in-memory token when it has not expired.
func (s *TokenStore) Current() (Token, bool) {
	s.mu.RLock()
	tok := s.current
	s.mu.RUnlock()
	if tok.Valid(s.now()) {
		return tok, true
	}
	return Token{}, false
}

// IsAuthenticated checks memory first, then the durable mirror. A durable
// token with a future expiry is adopted into memory; an expired or corrupt
// one is purged.
func (s *TokenStore) IsAuthenticated(ctx context.Context) bool {
	if _, ok := s.Current(); ok {
		return true
	}
	if s.mirror == nil {
		return false
	}

	tok, err := s.mirror.load(ctx)
	switch {
	case err == nil && tok.Valid(s.now()):
		s.set(tok)
		s.recorder.AuthAttempt(OutcomeResumed)
		s.logger.Debug("resumed durable token", "expires_at", tok.ExpiresAt)
		return true
	case err == nil:
		s.logger.Debug("durable token expired", "expires_at", tok.ExpiresAt)
		s.purgeMirror(ctx)
	case errors.Is(err, errMirrorEmpty):
	default:
		var ie *InvalidExpiryError
		switch {
		case errors.As(err, &ie):
			s.logger.Warn("durable token has malformed expiry", "value", ie.Value)
			s.purgeMirror(ctx)
		case errors.Is(err, ErrSealedCorrupt):
			s.logger.Warn("durable token cannot be unsealed")
			s.purgeMirror(ctx)
		default:
			s.logger.Warn("durable token lookup failed", "error", err)
		}
	}
	return false
}

// Authenticate runs the challenge and exchange and installs the new token.
// Callers arriving while a round trip is already running wait for it and
// share its result; a caller whose ctx ends stops waiting without affecting
// the round trip.
func (s *TokenStore) Authenticate(ctx context.Context) (Token, error) {
	ch := s.flight.DoChan(flightKey, func() (any, error) {
		s.authenticating.Store(true)
		defer s.authenticating.Store(false)
		return s.authenticate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.recorder.AuthAttempt(OutcomeShared)
		}
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

func (s *TokenStore) authenticate(ctx context.Context) (Token, error) {
	s.logger.Info("authenticating")

	proof, err := s.challenge.ChallengeToken(ctx, s.siteKey)
	if err != nil {
		return Token{}, s.fail(ctx, &AuthenticationError{Op: "challenge", Err: err})
	}

	tok, err := s.exchanger.Exchange(ctx, proof)
	if err != nil {
		var ie *InvalidExpiryError
		if errors.As(err, &ie) {
			s.logger.Warn("authentication returned malformed expiry", "value", ie.Value)
		}
		return Token{}, s.fail(ctx, err)
	}

	s.set(tok)
	if s.mirror != nil {
		if err := s.mirror.save(ctx, tok, s.now()); err != nil {
			s.logger.Warn("persisting token failed", "error", err)
		}
	}
	s.recorder.AuthAttempt(OutcomeSuccess)
	s.logger.Info("authenticated", "expires_at", tok.ExpiresAt)
	return tok, nil
}

func (s *TokenStore) fail(ctx context.Context, err error) error {
	s.set(Token{})
	s.purgeMirror(ctx)
	s.recorder.AuthAttempt(OutcomeFailure)
	s.logger.Error("authentication failed", "error", err)
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return err
	}
	return &AuthenticationError{Op: "exchange", Err: err}
}

// Token returns a usable token, resuming the durable one or authenticating
// when neither memory nor the mirror holds one.
func (s *TokenStore) Token(ctx context.Context) (Token, error) {
	if s.IsAuthenticated(ctx) {
		if tok, ok := s.Current(); ok {
			return tok, nil
		}
	}
	return s.Authenticate(ctx)
}

// Invalidate drops the token from memory and from the durable mirror.
func (s *TokenStore) Invalidate(ctx context.Context) {
	s.set(Token{})
	s.purgeMirror(ctx)
	s.logger.Info("token invalidated")
}

// Logout is an explicit, user-initiated Invalidate.
func (s *TokenStore) Logout(ctx context.Context) {
	s.logger.Info("logging out")
	s.Invalidate(ctx)
}

func (s *TokenStore) set(tok Token) {
	s.mu.Lock()
	s.current = tok
	s.mu.Unlock()
}

func (s *TokenStore) purgeMirror(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("clearing durable token failed", "error", err)
	}
}
