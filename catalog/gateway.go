package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/adeilh/go-trakt/auth"
	"github.com/adeilh/go-trakt/cache"
	"github.com/adeilh/go-trakt/httpx"
)

// Tokens is the part of *auth.TokenStore the gateway relies on.
type Tokens interface {
	IsAuthenticated(ctx context.Context) bool
	Authenticate(ctx context.Context) (auth.Token, error)
	Current() (auth.Token, bool)
	Invalidate(ctx context.Context)
}

// Gateway performs authenticated, cached requests against the listing
// service. It is safe for concurrent use.
type Gateway struct {
	client   *httpx.Client
	tokens   Tokens
	cache    *cache.Expiring[Request, json.RawMessage]
	ttl      time.Duration
	enabled  func() bool
	now      func() time.Time
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithFeatureFlag installs the ENABLE_TRAKT switch. It is read on every call.
func WithFeatureFlag(enabled func() bool) Option {
	return func(g *Gateway) {
		if enabled != nil {
			g.enabled = enabled
		}
	}
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(g *Gateway) {
		if r != nil {
			g.recorder = r
		}
	}
}

// NewGateway builds a gateway sending requests through client and
// authenticating through tokens.
func NewGateway(client *httpx.Client, tokens Tokens, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, ErrMissingClient
	}
	if tokens == nil {
		return nil, ErrMissingTokens
	}
	g := &Gateway{
		client:   client,
		tokens:   tokens,
		ttl:      DefaultCacheTTL,
		enabled:  func() bool { return true },
		now:      time.Now,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.cache = cache.NewExpiring(
		cache.WithClock[Request, json.RawMessage](g.now),
		cache.WithEqual[Request, json.RawMessage](sameRequest),
	)
	return g, nil
}

// Enabled reports the current state of the feature flag.
func (g *Gateway) Enabled() bool { return g.enabled() }

// Fetch returns the JSON body of GET path?query.
func (g *Gateway) Fetch(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return g.fetch(ctx, NewRequest(path, query))
}

// ClearCache drops every cached response.
func (g *Gateway) ClearCache() {
	g.cache.Clear()
}

// PurgeCache drops expired responses and reports how many were removed.
func (g *Gateway) PurgeCache() int {
	return g.cache.Purge()
}

func (g *Gateway) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	endpoint := req.Endpoint()
	if !g.enabled() {
		return nil, &FeatureDisabledError{Endpoint: req.Path}
	}

	if body, ok := g.cache.Get(req); ok {
		g.recorder.CacheLookup(endpoint, true)
		return body, nil
	}
	g.recorder.CacheLookup(endpoint, false)

	if !g.tokens.IsAuthenticated(ctx) {
		if _, err := g.tokens.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	body, err := g.get(ctx, req)
	if err != nil {
		se, ok := httpx.AsStatusError(err)
		if !ok {
			return nil, err
		}
		if se.Unauthorized() {
			g.logger.Warn("upstream rejected token, invalidating", "path", req.Path)
			g.tokens.Invalidate(ctx)
		}
		g.recorder.Retry(endpoint)
		g.logger.Info("retrying after re-authentication", "path", req.Path, "status", se.StatusCode)
		if _, err := g.tokens.Authenticate(ctx); err != nil {
			return nil, err
		}
		body, err = g.get(ctx, req)
		if err != nil {
			if se, ok := httpx.AsStatusError(err); ok {
				return nil, &UpstreamRequestError{Endpoint: req.Path, StatusCode: se.StatusCode, Status: se.Status, Err: err}
			}
			return nil, &UpstreamRequestError{Endpoint: req.Path, Err: err}
		}
	}

	g.cache.Set(req, body, g.ttl)
	return body, nil
}

// get performs one attempt. Non-2xx responses come back as *httpx.StatusError.
func (g *Gateway) get(ctx context.Context, req Request) (json.RawMessage, error) {
	var opts []httpx.RequestOption
	if tok, ok := g.tokens.Current(); ok {
		opts = append(opts, httpx.WithBearer(tok.Value))
	}

	start := g.now()
	resp, err := g.client.Get(ctx, req.Path, nil, opts...)
	if resp != nil {
		g.recorder.UpstreamRequest(req.Endpoint(), resp.StatusCode(), g.now().Sub(start))
	}
	if err != nil {
		return nil, err
	}

	raw := resp.Body()
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("catalog: %s: response is not valid JSON", req.Path)
	}
	body := make(json.RawMessage, len(raw))
	copy(body, raw)
	return body, nil
}
