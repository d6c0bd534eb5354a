package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrFeatureDisabled matches every *FeatureDisabledError.
	ErrFeatureDisabled = errors.New("catalog: integration disabled")
	ErrMissingClient   = errors.New("catalog: http client is required")
	ErrMissingTokens   = errors.New("catalog: token store is required")
)

// FeatureDisabledError is returned without any network activity when the
// integration is switched off.
type FeatureDisabledError struct {
	Endpoint string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("catalog: %s: integration disabled (ENABLE_TRAKT is off)", e.Endpoint)
}

func (e *FeatureDisabledError) Is(target error) bool { return target == ErrFeatureDisabled }

// UpstreamRequestError reports a request that still failed after the single
// retry.
type UpstreamRequestError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Err        error
}

func (e *UpstreamRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("catalog: request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("catalog: request to %s failed: %d %s", e.Endpoint, e.StatusCode, e.Status)
}

func (e *UpstreamRequestError) Unwrap() error { return e.Err }
