package httpx

import (
	"log/slog"
	"maps"
	"net/http"
	"time"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

type ServerOptions struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Middlewares     []MiddlewareFunc
	Validators      []Validator
	// Logger enables one access log line per request.
	Logger *slog.Logger
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:         ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Middlewares:     []MiddlewareFunc{RecoverMiddleware(), RequestIDMiddleware()},
	}
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

// WithTimeouts sets the read and write deadlines; zero keeps the default.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// AppendMiddlewares runs mw after recovery and request id stamping.
func AppendMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) { o.Middlewares = append(o.Middlewares, mw...) }
}

// WithValidators installs request-level checks executed before route handlers.
func WithValidators(v ...Validator) ServerOption {
	return func(o *ServerOptions) { o.Validators = append(o.Validators, v...) }
}

func WithRequestLogger(logger *slog.Logger) ServerOption {
	return func(o *ServerOptions) { o.Logger = logger }
}

type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Headers    map[string]string
	UserAgent  string
	RequestIDs bool
	Transport  http.RoundTripper
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:    10 * time.Second,
		Headers:    map[string]string{"Content-Type": "application/json", "Accept": "application/json"},
		UserAgent:  "go-trakt",
		RequestIDs: true,
	}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithHeaders replaces the default header set.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if len(headers) > 0 {
			o.Headers = maps.Clone(headers)
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) { o.UserAgent = ua }
}

// WithoutRequestIDs stops the client from stamping X-Request-ID on outbound requests.
func WithoutRequestIDs() ClientOption {
	return func(o *ClientOptions) { o.RequestIDs = false }
}

// WithTransport swaps the round tripper, mostly for tests that count or fail requests.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *ClientOptions) { o.Transport = rt }
}
