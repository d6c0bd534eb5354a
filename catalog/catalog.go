// Package catalog is the authenticated gateway to the content-listing
// service. Every endpoint goes through one procedure: feature gate, response
// cache, authentication, request, one retry after re-authentication, cache
// store.
package catalog

import (
	"net/url"
	"strings"
	"time"
)

// DefaultCacheTTL is how long a successful response is served from cache.
const DefaultCacheTTL = 3600 * time.Second

// Request identifies one upstream resource and is the response cache key.
// Path carries the encoded query, so ReleaseDetails lookups for different
// episodes never share an entry. Headers are deliberately not part of it.
type Request struct {
	Path string
}

// NewRequest normalises path and appends the encoded query.
func NewRequest(path string, query url.Values) Request {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if q := query.Encode(); q != "" {
		path += "?" + q
	}
	return Request{Path: path}
}

// Endpoint is the metrics label for the request: its first path segment.
func (r Request) Endpoint() string {
	p := strings.TrimPrefix(r.Path, "/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}

func sameRequest(a, b Request) bool { return a.Path == b.Path }

// Recorder receives gateway events; see the metrics package.
type Recorder interface {
	CacheLookup(endpoint string, hit bool)
	UpstreamRequest(endpoint string, status int, elapsed time.Duration)
	Retry(endpoint string)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(string, bool)                   {}
func (nopRecorder) UpstreamRequest(string, int, time.Duration) {}
func (nopRecorder) Retry(string)                               {}
