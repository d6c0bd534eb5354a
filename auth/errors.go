package auth

import (
	"errors"
	"fmt"
)

var (
	ErrChallengeUnavailable = errors.New("auth: challenge token unavailable")
	ErrMissingExchanger     = errors.New("auth: token store requires an exchanger")
	ErrMissingChallenge     = errors.New("auth: token store requires a challenge provider")
)

// AuthenticationError reports a failed challenge or credential exchange.
type AuthenticationError struct {
	// Op is the failing step: "challenge" or "exchange".
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth: %s failed (%d): %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("auth: %s failed: %s", e.Op, msg)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// InvalidExpiryError reports an expiry timestamp that could not be parsed.
type InvalidExpiryError struct {
	Value string
	Err   error
}

func (e *InvalidExpiryError) Error() string {
	return fmt.Sprintf("auth: invalid expiry %q: %v", e.Value, e.Err)
}

func (e *InvalidExpiryError) Unwrap() error { return e.Err }
