package httpx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

func newStatusError(resp *resty.Response) *StatusError {
	e := &StatusError{
		StatusCode: resp.StatusCode(),
		Status:     StatusText(resp.StatusCode(), resp.Status()),
		Body:       resp.Body(),
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.Path = resp.Request.URL
	}
	return e
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// Unauthorized reports whether the server rejected the credentials.
func (e *StatusError) Unauthorized() bool { return e.StatusCode == StatusUnauthorized }

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
