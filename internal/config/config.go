package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	NHTSA  NHTSAConfig  `yaml:"nhtsa" mapstructure:"nhtsa"`
	EPA    EPAConfig    `yaml:"epa" mapstructure:"epa"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Drafts DraftsConfig `yaml:"drafts" mapstructure:"drafts"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the decode cache database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// NHTSAConfig configures the vPIC client.
type NHTSAConfig struct {
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts       int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// EPAConfig configures the fueleconomy.gov client.
type EPAConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures decode caching.
type CacheConfig struct {
	Size     int `yaml:"size" mapstructure:"size"`
	TTLHours int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the stored decode lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// DraftsConfig configures in-memory listing drafts.
type DraftsConfig struct {
	Max               int `yaml:"max" mapstructure:"max"`
	DecodeTimeoutSecs int `yaml:"decode_timeout_secs" mapstructure:"decode_timeout_secs"`
}

// DecodeTimeout bounds one background decode.
func (c DraftsConfig) DecodeTimeout() time.Duration {
	return time.Duration(c.DecodeTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BatchConfig configures batch decoding.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VINFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "vinfill.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("nhtsa.base_url", "https://vpic.nhtsa.dot.gov")
	v.SetDefault("nhtsa.rate_limit", 5.0)
	v.SetDefault("nhtsa.timeout_secs", 15)
	v.SetDefault("nhtsa.retry_attempts", 3)
	v.SetDefault("nhtsa.breaker_threshold", 5)
	v.SetDefault("nhtsa.breaker_cooldown_secs", 30)
	v.SetDefault("epa.enabled", true)
	v.SetDefault("epa.base_url", "https://www.fueleconomy.gov")
	v.SetDefault("epa.rate_limit", 5.0)
	v.SetDefault("epa.timeout_secs", 10)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl_hours", 720)
	v.SetDefault("drafts.max", 10000)
	v.SetDefault("drafts.decode_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is the command name:
// "serve", "decode" or "batch".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Drafts.Max <= 0 {
			errs = append(errs, "drafts.max must be > 0")
		}
		if c.Drafts.DecodeTimeoutSecs <= 0 {
			errs = append(errs, "drafts.decode_timeout_secs must be > 0")
		}
	case "decode":
	case "batch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 32 {
			errs = append(errs, "batch.concurrency must be between 1 and 32")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "none":
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}

	if !absoluteURL(c.NHTSA.BaseURL) {
		errs = append(errs, "nhtsa.base_url must be an absolute http(s) URL")
	}
	if c.NHTSA.RateLimit <= 0 {
		errs = append(errs, "nhtsa.rate_limit must be > 0")
	}
	if c.EPA.Enabled && !absoluteURL(c.EPA.BaseURL) {
		errs = append(errs, "epa.base_url must be an absolute http(s) URL")
	}
	if c.Cache.TTLHours <= 0 {
		errs = append(errs, "cache.ttl_hours must be > 0")
	}
	if c.Cache.Size < 0 {
		errs = append(errs, "cache.size must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func absoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
