package httpx

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Client is a thin JSON-over-HTTP client for the catalog and detail
// upstreams. Non-2xx responses come back as *StatusError alongside the
// response so callers can branch on the code.
type Client struct {
	resty *resty.Client
}

func NewClient(opts ...ClientOption) *Client {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeaders(cfg.Headers)
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Transport != nil {
		rc.SetTransport(cfg.Transport)
	}
	if cfg.RequestIDs {
		rc.OnBeforeRequest(stampRequestID)
	}
	return &Client{resty: rc}
}

func stampRequestID(_ *resty.Client, r *resty.Request) error {
	if r.Header.Get(HeaderRequestID) == "" {
		r.SetHeader(HeaderRequestID, uuid.NewString())
	}
	return nil
}

// BaseURL reports the configured base URL.
func (c *Client) BaseURL() string { return c.resty.BaseURL }

type RequestOption func(*resty.Request)

// WithRequestHeaders sets per-request headers.
func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(r *resty.Request) {
		if len(headers) > 0 {
			r.SetHeaders(headers)
		}
	}
}

// WithQuery adds query parameters, keeping repeated keys.
func WithQuery(q url.Values) RequestOption {
	return func(r *resty.Request) {
		if len(q) > 0 {
			r.SetQueryParamsFromValues(q)
		}
	}
}

// WithBearer sets the Authorization header. Blank tokens are ignored so an
// unauthenticated first attempt can share the same call site.
func WithBearer(token string) RequestOption {
	return func(r *resty.Request) {
		if token = strings.TrimSpace(token); token != "" {
			r.SetAuthToken(token)
		}
	}
}

// WithErrorResult decodes non-2xx JSON bodies into v.
func WithErrorResult(v any) RequestOption {
	return func(r *resty.Request) {
		if v != nil {
			r.SetError(v)
		}
	}
}

func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodGet, path, nil, result, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodPost, path, body, result, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodPut, path, body, result, opts)
}

func (c *Client) Delete(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodDelete, path, nil, result, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, opts []RequestOption) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, fmt.Errorf("httpx: %s %s: %w", method, path, err)
	}
	if !Successful(resp.StatusCode()) {
		return resp, newStatusError(resp)
	}
	return resp, nil
}
