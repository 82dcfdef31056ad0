package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Import    ImportConfig    `mapstructure:"import"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FetchConfig controls the outbound page fetcher
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory", "redis" or "none"
	RedisURL        string        `mapstructure:"redis_url"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// CatalogConfig selects where the ingredient catalog is read from
type CatalogConfig struct {
	Type string `mapstructure:"type"` // "file", "sqlite" or "none"
	Path string `mapstructure:"path"`
}

// StoreConfig configures the SQLite store. An empty path disables persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig mirrors logger.Config
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// ImportConfig tunes the import pipeline
type ImportConfig struct {
	MaxArchiveDepth  int     `mapstructure:"max_archive_depth"`
	MaxEntryBytes    int64   `mapstructure:"max_entry_bytes"`
	MaxTotalBytes    int64   `mapstructure:"max_total_bytes"`
	PartialThreshold float64 `mapstructure:"partial_threshold"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return load("")
}

// LoadFile is Load with an explicit config file instead of the search paths.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/recipebox/")
	}

	// RECIPEBOX_CACHE_REDIS_URL -> cache.redis_url
	v.SetEnvPrefix("RECIPEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads ./.env when present. Variables already set in the
// environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return gotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.user_agent", "recipebox-importer/1.0")
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.max_body_bytes", 5<<20)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "recipebox:")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("catalog.type", "none")
	v.SetDefault("catalog.path", "")

	v.SetDefault("store.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)

	v.SetDefault("import.max_archive_depth", 2)
	v.SetDefault("import.max_entry_bytes", 16<<20)
	v.SetDefault("import.max_total_bytes", 64<<20)
	v.SetDefault("import.partial_threshold", 0.5)

	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.burst", 20)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Cache.Type {
	case "memory", "none":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis' (set RECIPEBOX_CACHE_REDIS_URL)")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'none', got: %s", config.Cache.Type)
	}

	switch config.Catalog.Type {
	case "none":
	case "file":
		if config.Catalog.Path == "" {
			return fmt.Errorf("catalog path is required when catalog type is 'file' (set RECIPEBOX_CATALOG_PATH)")
		}
	case "sqlite":
		if config.Store.Path == "" {
			return fmt.Errorf("store path is required when catalog type is 'sqlite' (set RECIPEBOX_STORE_PATH)")
		}
	default:
		return fmt.Errorf("catalog type must be 'file', 'sqlite' or 'none', got: %s", config.Catalog.Type)
	}

	if config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	if config.Import.PartialThreshold <= 0 || config.Import.PartialThreshold >= 1 {
		return fmt.Errorf("import partial threshold must be between 0 and 1, got: %v", config.Import.PartialThreshold)
	}

	if config.Import.MaxArchiveDepth < 0 {
		return fmt.Errorf("import max archive depth must not be negative, got: %d", config.Import.MaxArchiveDepth)
	}

	if config.Import.MaxTotalBytes < config.Import.MaxEntryBytes {
		return fmt.Errorf("import max_total_bytes (%d) must be at least max_entry_bytes (%d)",
			config.Import.MaxTotalBytes, config.Import.MaxEntryBytes)
	}

	if config.RateLimit.PerIP <= 0 {
		return fmt.Errorf("ratelimit per_ip must be positive, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
