// Package config loads runtime settings: defaults, then an optional YAML file
// with ${VAR} expansion, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given.
const DefaultFile = "trakt.yaml"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Trakt   TraktConfig   `yaml:"trakt"`
	Details DetailsConfig `yaml:"details"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TraktConfig configures the listing service. Enabled is the ENABLE_TRAKT
// feature flag.
type TraktConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	SiteKey        string        `yaml:"site_key"`
	ChallengeToken string        `yaml:"challenge_token"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type DetailsConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	// MaxInFlight caps concurrent lookups across batches. Zero means no cap.
	MaxInFlight int `yaml:"max_in_flight"`
}

// StoreConfig selects where the bearer token survives restarts.
type StoreConfig struct {
	Driver         string `yaml:"driver"`
	Path           string `yaml:"path"`
	RedisURL       string `yaml:"redis_url"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	Prefix         string `yaml:"prefix"`
	SealPassphrase string `yaml:"seal_passphrase"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Metrics      bool          `yaml:"metrics"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Trakt: TraktConfig{
			Enabled:  true,
			BaseURL:  "https://api.trakt.tv",
			Timeout:  10 * time.Second,
			CacheTTL: time.Hour,
		},
		Details: DetailsConfig{
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "trakt.db",
			Prefix: "trakt",
		},
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			Metrics:      true,
		},
	}
}

// Load builds the configuration from defaults < YAML < environment. A .env
// file in the working directory is loaded first without overriding variables
// that are already set. A missing YAML file is not an error when path is
// empty or DefaultFile.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	optional := path == "" || path == DefaultFile
	if path == "" {
		path = DefaultFile
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && optional:
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Log.Level, "TRAKT_LOG_LEVEL")
	setString(&c.Log.Format, "TRAKT_LOG_FORMAT")
	setString(&c.Trakt.BaseURL, "TRAKT_BASE_URL")
	setString(&c.Trakt.SiteKey, "TRAKT_SITE_KEY")
	setString(&c.Trakt.ChallengeToken, "TRAKT_CHALLENGE_TOKEN")
	setString(&c.Details.BaseURL, "TMDB_BASE_URL")
	setString(&c.Details.APIKey, "TMDB_API_KEY")
	setString(&c.Store.Driver, "TRAKT_STORE_DRIVER")
	setString(&c.Store.Path, "TRAKT_STORE_PATH")
	setString(&c.Store.RedisURL, "REDIS_URL")
	setString(&c.Store.PostgresDSN, "DATABASE_URL")
	setString(&c.Store.SealPassphrase, "TRAKT_SEAL_PASSPHRASE")
	setString(&c.Server.Address, "TRAKT_ADDRESS")

	if err := setBool(&c.Trakt.Enabled, "ENABLE_TRAKT"); err != nil {
		return err
	}
	if err := setBool(&c.Server.Metrics, "TRAKT_METRICS"); err != nil {
		return err
	}
	return setDuration(&c.Trakt.CacheTTL, "TRAKT_CACHE_TTL")
}

// Validate rejects settings the wiring cannot use.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Trakt.Enabled && strings.TrimSpace(c.Trakt.BaseURL) == "" {
		errs = append(errs, errors.New("trakt.base_url is required when trakt is enabled"))
	}
	if c.Trakt.Timeout <= 0 {
		errs = append(errs, errors.New("trakt.timeout must be positive"))
	}
	if c.Trakt.CacheTTL <= 0 {
		errs = append(errs, errors.New("trakt.cache_ttl must be positive"))
	}
	if c.Details.MaxInFlight < 0 {
		errs = append(errs, errors.New("details.max_in_flight must not be negative"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis driver"))
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, redis, postgres", c.Store.Driver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = d
	return nil
}
