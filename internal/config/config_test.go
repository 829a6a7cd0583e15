package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "vinfill.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "https://vpic.nhtsa.dot.gov", cfg.NHTSA.BaseURL)
	assert.InDelta(t, 5.0, cfg.NHTSA.RateLimit, 0.001)
	assert.Equal(t, 3, cfg.NHTSA.RetryAttempts)
	assert.True(t, cfg.EPA.Enabled)
	assert.Equal(t, "https://www.fueleconomy.gov", cfg.EPA.BaseURL)
	assert.Equal(t, 1024, cfg.Cache.Size)
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 10000, cfg.Drafts.Max)
	assert.Equal(t, 30*time.Second, cfg.Drafts.DecodeTimeout())

	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("decode"))
	assert.NoError(t, cfg.Validate("batch"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/vinfill
log:
  level: debug
  format: console
server:
  port: 9090
epa:
  enabled: false
batch:
  concurrency: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/vinfill", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.EPA.Enabled)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 1024, cfg.Cache.Size)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("VINFILL_STORE_DRIVER", "postgres")
	t.Setenv("VINFILL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VINFILL_SERVER_PORT=3001\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("VINFILL_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Server.Port)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("VINFILL_SERVER_PORT", "3000")
	t.Setenv("VINFILL_NHTSA_BASE_URL", "http://localhost:9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:9999", cfg.NHTSA.BaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", Path: "vinfill.db"},
		NHTSA:  NHTSAConfig{BaseURL: "https://vpic.nhtsa.dot.gov", RateLimit: 5},
		EPA:    EPAConfig{Enabled: true, BaseURL: "https://www.fueleconomy.gov"},
		Cache:  CacheConfig{Size: 1024, TTLHours: 720},
		Drafts: DraftsConfig{Max: 100, DecodeTimeoutSecs: 30},
		Server: ServerConfig{Port: 8080},
		Batch:  BatchConfig{Concurrency: 4},
	}
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_Drafts(t *testing.T) {
	cfg := validDefaults()
	cfg.Drafts = DraftsConfig{}

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "drafts.max must be > 0")
	assert.Contains(t, err.Error(), "drafts.decode_timeout_secs must be > 0")

	// decode does not use drafts
	assert.NoError(t, cfg.Validate("decode"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 32")

	cfg.Batch.Concurrency = 33
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.Concurrency = 32
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("decode")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/vinfill"
	assert.NoError(t, cfg.Validate("decode"))

	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = ""
	assert.ErrorContains(t, cfg.Validate("decode"), "store.path is required")

	cfg.Store.Driver = "none"
	assert.NoError(t, cfg.Validate("decode"))

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate("decode"), "store.driver must be one of")
}

func TestValidateProviderURLs(t *testing.T) {
	cfg := validDefaults()
	cfg.NHTSA.BaseURL = "vpic.nhtsa.dot.gov"
	cfg.EPA.BaseURL = "ftp://fueleconomy.gov"

	err := cfg.Validate("decode")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nhtsa.base_url")
	assert.Contains(t, err.Error(), "epa.base_url")

	cfg.NHTSA.BaseURL = "https://vpic.nhtsa.dot.gov"
	cfg.EPA.Enabled = false
	assert.NoError(t, cfg.Validate("decode"))
}

func TestValidateCache(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.TTLHours = 0
	cfg.Cache.Size = -1

	err := cfg.Validate("decode")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.ttl_hours must be > 0")
	assert.Contains(t, err.Error(), "cache.size must be >= 0")
}
