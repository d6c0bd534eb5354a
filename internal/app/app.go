// Package app wires configuration into the running services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adeilh/go-trakt/auth"
	"github.com/adeilh/go-trakt/cache"
	"github.com/adeilh/go-trakt/cache/redis"
	"github.com/adeilh/go-trakt/catalog"
	"github.com/adeilh/go-trakt/config"
	"github.com/adeilh/go-trakt/db/sql/postgres"
	"github.com/adeilh/go-trakt/db/sql/sqlite"
	"github.com/adeilh/go-trakt/httpx"
	"github.com/adeilh/go-trakt/media"
	"github.com/adeilh/go-trakt/metrics"
	"github.com/adeilh/go-trakt/reorder"
	"github.com/adeilh/go-trakt/server"
)

type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      cache.Store
	Tokens     *auth.TokenStore
	Gateway    *catalog.Gateway
	Aggregator *media.Aggregator
	Orders     *reorder.StoreCommitter
	Metrics    *metrics.Metrics
}

// Option adjusts wiring, mostly for tests.
type Option func(*options)

type options struct {
	challenge auth.ChallengeProvider
	registry  *prometheus.Registry
}

// WithChallenge replaces the static challenge token from the config.
func WithChallenge(p auth.ChallengeProvider) Option {
	return func(o *options) { o.challenge = p }
}

// WithRegistry registers metrics in reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New opens the durable store and builds every service on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{challenge: auth.StaticChallenge(cfg.Trakt.ChallengeToken)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.registry == nil {
		o.registry = metrics.NewRegistry()
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	m := metrics.New(o.registry)

	traktClient := httpx.NewClient(
		httpx.WithBaseURL(cfg.Trakt.BaseURL),
		httpx.WithClientTimeout(cfg.Trakt.Timeout),
	)
	tokens, err := auth.NewTokenStore(
		auth.NewHTTPExchanger(traktClient, auth.DefaultAuthPath),
		o.challenge,
		auth.WithDurableStore(store, cfg.Store.Prefix),
		auth.WithSiteKey(cfg.Trakt.SiteKey),
		auth.WithLogger(logger.With("component", "auth")),
		auth.WithRecorder(m),
	)
	if err != nil {
		_ = cache.Close(store)
		return nil, err
	}

	enabled := cfg.Trakt.Enabled
	gateway, err := catalog.NewGateway(traktClient, tokens,
		catalog.WithFeatureFlag(func() bool { return enabled }),
		catalog.WithCacheTTL(cfg.Trakt.CacheTTL),
		catalog.WithLogger(logger.With("component", "catalog")),
		catalog.WithRecorder(m),
	)
	if err != nil {
		_ = cache.Close(store)
		return nil, err
	}

	detailClient := httpx.NewClient(
		httpx.WithBaseURL(cfg.Details.BaseURL),
		httpx.WithClientTimeout(cfg.Details.Timeout),
	)
	agg := media.NewAggregator(gateway, media.NewHTTPDetailService(detailClient, cfg.Details.APIKey),
		media.WithLogger(logger.With("component", "media")),
		media.WithRecorder(m),
		media.WithMaxInFlight(cfg.Details.MaxInFlight),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Tokens:     tokens,
		Gateway:    gateway,
		Aggregator: agg,
		Orders:     reorder.NewStoreCommitter(store, cfg.Store.Prefix),
		Metrics:    m,
	}, nil
}

// Server builds the HTTP API over the app's services.
func (a *App) Server() *server.Server {
	opts := server.Options{
		Address:      a.Config.Server.Address,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		Gateway:      a.Gateway,
		Tokens:       a.Tokens,
		Aggregator:   a.Aggregator,
		Orders:       a.Orders,
		Logger:       a.Logger.With("component", "server"),
		ResetDelay:   reorder.DefaultResetDelay,
	}
	if a.Config.Server.Metrics {
		opts.Metrics = a.Metrics.Handler()
	}
	return server.New(opts)
}

func (a *App) Close() error {
	return cache.Close(a.Store)
}

// OpenStore opens the configured durable store, sealed when a passphrase is
// set.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (cache.Store, error) {
	var (
		store cache.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		store = cache.NewMemoryStore()
	case config.DriverSQLite:
		store, err = sqlite.Open(cfg.Path)
	case config.DriverRedis:
		var rs *redis.Store
		rs, err = redis.NewStore(redis.Options{URL: cfg.RedisURL})
		if err == nil {
			if err = rs.Ping(ctx); err != nil {
				_ = rs.Close()
			}
		}
		store = rs
	case config.DriverPostgres:
		store, err = postgres.OpenKVStore(ctx, postgres.WithDSN(cfg.PostgresDSN))
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("app: open %s store: %w", cfg.Driver, err)
	}

	if cfg.SealPassphrase == "" {
		return store, nil
	}
	sealed, err := auth.NewSealedStore(store, []byte(cfg.SealPassphrase), "")
	if err != nil {
		return nil, errors.Join(err, cache.Close(store))
	}
	return sealed, nil
}
