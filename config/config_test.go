package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TRAKT_LOG_LEVEL", "TRAKT_LOG_FORMAT", "TRAKT_BASE_URL", "TRAKT_SITE_KEY",
	"TRAKT_CHALLENGE_TOKEN", "TMDB_BASE_URL", "TMDB_API_KEY", "TRAKT_STORE_DRIVER",
	"TRAKT_STORE_PATH", "REDIS_URL", "DATABASE_URL", "TRAKT_SEAL_PASSPHRASE",
	"TRAKT_ADDRESS", "ENABLE_TRAKT", "TRAKT_METRICS", "TRAKT_CACHE_TTL",
}

// isolate runs the test in an empty directory with the config variables
// blanked.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Trakt.Enabled)
	assert.Equal(t, time.Hour, cfg.Trakt.CacheTTL)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	isolate(t)

	_, err := Load("missing.yaml")
	assert.ErrorContains(t, err, "missing.yaml")
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TEST_CHALLENGE", "proof-from-env")
	path := writeFile(t, dir, "custom.yaml", `
log:
  level: debug
  format: json
trakt:
  base_url: https://listing.example
  site_key: site
  challenge_token: ${TEST_CHALLENGE}
  cache_ttl: 5m
store:
  driver: redis
  redis_url: redis://localhost:6379/0
server:
  address: 127.0.0.1:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://listing.example", cfg.Trakt.BaseURL)
	assert.Equal(t, "proof-from-env", cfg.Trakt.ChallengeToken)
	assert.Equal(t, 5*time.Minute, cfg.Trakt.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Trakt.Timeout, "unset keys keep defaults")
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, DefaultFile, "trakt:\n  enabled: true\n")
	t.Setenv("ENABLE_TRAKT", "false")
	t.Setenv("TRAKT_STORE_DRIVER", "memory")
	t.Setenv("TRAKT_CACHE_TTL", "90s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Trakt.Enabled)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.Trakt.CacheTTL)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "TMDB_API_KEY=from-dotenv\n")
	// godotenv never overrides a variable that exists, even when empty.
	require.NoError(t, os.Unsetenv("TMDB_API_KEY"))
	t.Cleanup(func() { os.Unsetenv("TMDB_API_KEY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Details.APIKey)
}

func TestInvalidEnvValue(t *testing.T) {
	isolate(t)
	t.Setenv("ENABLE_TRAKT", "maybe")

	_, err := Load("")
	assert.ErrorContains(t, err, "ENABLE_TRAKT")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"missing base url", func(c *Config) { c.Trakt.BaseURL = "" }, "trakt.base_url"},
		{"zero ttl", func(c *Config) { c.Trakt.CacheTTL = 0 }, "cache_ttl"},
		{"negative in flight", func(c *Config) { c.Details.MaxInFlight = -1 }, "max_in_flight"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "etcd" }, "store.driver"},
		{"redis without url", func(c *Config) { c.Store.Driver = DriverRedis }, "redis_url"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "postgres_dsn"},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }, "store.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}

	disabled := Default()
	disabled.Trakt.Enabled = false
	disabled.Trakt.BaseURL = ""
	assert.NoError(t, disabled.Validate())
}
