// Package auth owns the bearer token used against the listing service: it
// proves legitimacy with a challenge token, exchanges it for a bearer token,
// mirrors the result into a durable store and deduplicates concurrent
// authentication attempts.
package auth

import (
	"context"
	"time"
)

// Token is an issued bearer credential. Tokens are replaced wholesale, never
// mutated.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be presented at the given instant.
func (t Token) Valid(at time.Time) bool {
	return t.Value != "" && at.Before(t.ExpiresAt)
}

// ChallengeProvider issues one-time proof tokens from a bot-mitigation
// service for the given site key.
type ChallengeProvider interface {
	ChallengeToken(ctx context.Context, siteKey string) (string, error)
}

// ChallengeFunc adapts a function to ChallengeProvider.
type ChallengeFunc func(ctx context.Context, siteKey string) (string, error)

func (f ChallengeFunc) ChallengeToken(ctx context.Context, siteKey string) (string, error) {
	return f(ctx, siteKey)
}

// StaticChallenge always answers with the same proof, e.g. one injected
// through the environment by an out-of-process solver.
func StaticChallenge(proof string) ChallengeProvider {
	return ChallengeFunc(func(context.Context, string) (string, error) {
		if proof == "" {
			return "", ErrChallengeUnavailable
		}
		return proof, nil
	})
}

// Exchanger trades a challenge proof for a bearer token.
type Exchanger interface {
	Exchange(ctx context.Context, proof string) (Token, error)
}

// Recorder receives authentication outcomes; see the metrics package.
type Recorder interface {
	AuthAttempt(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(string) {}

// State is the externally visible lifecycle of the TokenStore.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}
