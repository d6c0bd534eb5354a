package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestServer wraps httptest.Server so callers don't import net/http/httptest.
type TestServer struct{ *httptest.Server }

// NewTestServer starts h and closes it when t finishes.
func NewTestServer(t testing.TB, h http.Handler) *TestServer {
	t.Helper()
	ts := &TestServer{httptest.NewServer(h)}
	t.Cleanup(ts.Close)
	return ts
}

// NewEchoTestServer starts a TestServer serving routes registered on a fresh Echo.
func NewEchoTestServer(t testing.TB, reg RouteRegistrar) *TestServer {
	t.Helper()
	e := NewEcho()
	e.HTTPErrorHandler = jsonErrorHandler
	if reg != nil {
		reg(e)
	}
	return NewTestServer(t, e)
}

// BaseURL returns the server's base URL.
func (ts *TestServer) BaseURL() string {
	if ts == nil || ts.Server == nil {
		return ""
	}
	return ts.URL
}

// APIClient returns a Client pointed at the server.
func (ts *TestServer) APIClient(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithBaseURL(ts.BaseURL())}, opts...)...)
}
