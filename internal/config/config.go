package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendSqlite   = "sqlite"
	StoreBackendMemory   = "memory"

	CacheBackendFreecache = "freecache"
	CacheBackendRedis     = "redis"
)

type Config struct {
	Host        string
	Port        int
	Environment string `toml:"environment"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// record store
	StoreBackend   string `toml:"store_backend"`
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	SqlitePath     string `toml:"sqlite_path"`
	// cache
	CacheBackend    string `toml:"cache_backend"`
	CacheSizeMB     int    `toml:"cache_size_mb"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
	RedisHost       string `toml:"redis_host"`
	RedisPort       string `toml:"redis_port"`
	// http
	WriteRateLimitPerMin  int      `toml:"write_rate_limit_per_min"`
	AllowedOrigins        []string `toml:"allowed_origins"`
	PrometheusMetricsHost string   `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string   `toml:"prometheus_metrics_port"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env,
// with defaults applied and validated.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.StoreBackend == "" {
		c.StoreBackend = StoreBackendMemory
	}
	if c.CacheBackend == "" {
		c.CacheBackend = CacheBackendFreecache
	}
	if c.CacheSizeMB <= 0 {
		c.CacheSizeMB = 16
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}

	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
			errs = append(errs, errors.New("postgres store requires postgres_host, postgres_port and postgres_db_name"))
		}
	case StoreBackendSqlite:
		if c.SqlitePath == "" {
			errs = append(errs, errors.New("sqlite store requires sqlite_path"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store_backend: %s", c.StoreBackend))
	}

	switch c.CacheBackend {
	case CacheBackendFreecache:
	case CacheBackendRedis:
		if c.RedisHost == "" || c.RedisPort == "" {
			errs = append(errs, errors.New("redis cache requires redis_host and redis_port"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache_backend: %s", c.CacheBackend))
	}

	if c.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("negative cache_ttl_seconds: %d", c.CacheTTLSeconds))
	}

	return errors.Join(errs...)
}

// RedisEnabled reports whether a redis client is needed at all. Besides the
// redis cache backend, a configured redis address enables write rate limiting.
func (c *Config) RedisEnabled() bool {
	return c.CacheBackend == CacheBackendRedis || (c.RedisHost != "" && c.RedisPort != "")
}
