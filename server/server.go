// Package server exposes the gateway, the aggregators and the token state
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/adeilh/go-trakt/auth"
	"github.com/adeilh/go-trakt/httpx"
	"github.com/adeilh/go-trakt/media"
	"github.com/adeilh/go-trakt/reorder"
)

// Gateway is the part of *catalog.Gateway the API serves.
type Gateway interface {
	Fetch(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Enabled() bool
	ClearCache()
}

// Tokens is the part of *auth.TokenStore the API serves.
type Tokens interface {
	State() auth.State
	Current() (auth.Token, bool)
	IsAuthenticated(ctx context.Context) bool
	Authenticate(ctx context.Context) (auth.Token, error)
	Logout(ctx context.Context)
}

// Aggregator is the part of *media.Aggregator the API serves.
type Aggregator interface {
	CuratedMovieLists(ctx context.Context) ([]media.CuratedMovieList, error)
	DetailsForIDs(ctx context.Context, ids []string, typ media.Type, limit int) ([]media.DetailRecord, error)
}

// Orders persists user-chosen list orders.
type Orders interface {
	reorder.Committer
	Load(ctx context.Context, group string) ([]string, error)
}

type Options struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Gateway    Gateway
	Tokens     Tokens
	Aggregator Aggregator
	// Orders is optional; without it the order routes are not mounted and
	// curated lists keep the upstream order.
	Orders Orders
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// ResetDelay is passed to reorder sessions.
	ResetDelay time.Duration
}

type Server struct {
	opts   Options
	http   *httpx.Server
	logger *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{opts: opts, logger: logger}
	s.http = httpx.NewServer(
		httpx.WithAddress(opts.Address),
		httpx.WithTimeouts(opts.ReadTimeout, opts.WriteTimeout),
		httpx.WithRequestLogger(logger),
	)
	s.http.RegisterRoutes(s.routes)
	return s
}

func (s *Server) Handler() http.Handler { return s.http.Handler() }

// Start serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http server listening", "address", s.http.Address())
	err := s.http.Start(ctx)
	s.logger.Info("http server stopped")
	return err
}

func (s *Server) routes(e *httpx.Echo) {
	e.GET("/healthz", s.health)
	if s.opts.Metrics != nil {
		e.GET("/metrics", httpx.WrapHandler(s.opts.Metrics))
	}

	api := httpx.NewRouter(e, "/api")
	api.GET("/lists", s.curatedLists).
		GET("/details", s.details).
		GET("/endpoints/*", s.passthrough).
		DELETE("/cache", s.clearCache).
		GET("/auth", s.authStatus).
		POST("/auth", s.login).
		DELETE("/auth", s.logout)
	if s.opts.Orders != nil {
		api.GET("/order/:group", s.getOrder).
			PUT("/order/:group", s.putOrder)
	}
}
