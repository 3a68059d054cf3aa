package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	CJ        CJConfig
	Pepperjam PepperjamConfig
	Affiliate AffiliateConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Import    ImportConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
	Output string `mapstructure:"output"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "postgres" or "sqlite"
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// CJConfig holds CJ product feed credentials
type CJConfig struct {
	APIToken      string `mapstructure:"api_token"`
	CompanyID     string `mapstructure:"company_id"`
	PID           string `mapstructure:"pid"`
	BaseURL       string `mapstructure:"base_url"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

// Enabled reports whether CJ credentials are configured
func (c CJConfig) Enabled() bool {
	return c.APIToken != "" && c.CompanyID != ""
}

// PepperjamConfig holds Pepperjam publisher API credentials
type PepperjamConfig struct {
	APIKey        string `mapstructure:"api_key"`
	APIVersion    string `mapstructure:"api_version"`
	BaseURL       string `mapstructure:"base_url"`
	PublisherID   string `mapstructure:"publisher_id"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

// Enabled reports whether Pepperjam credentials are configured
func (c PepperjamConfig) Enabled() bool {
	return c.APIKey != ""
}

// AffiliateConfig holds tracking link hosts
type AffiliateConfig struct {
	CJClickHost        string `mapstructure:"cj_click_host"`
	PepperjamClickHost string `mapstructure:"pepperjam_click_host"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// ImportConfig holds import pipeline tuning
type ImportConfig struct {
	DefaultLimit    int           `mapstructure:"default_limit"`
	MaxLimit        int           `mapstructure:"max_limit"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	RefreshWindow   int           `mapstructure:"refresh_window"`
	BulkConcurrency int           `mapstructure:"bulk_concurrency"`
	MaxScan         int           `mapstructure:"max_scan"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/catalogsync/")

	// CATALOGSYNC_CJ_API_TOKEN -> cj.api_token
	v.SetEnvPrefix("CATALOGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
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

// loadEnvFile loads ./.env into the process environment if present.
// Variables already set are not overridden.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key needs a default
// (even an empty one) so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "catalogsync.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("cj.api_token", "")
	v.SetDefault("cj.company_id", "")
	v.SetDefault("cj.pid", "")
	v.SetDefault("cj.base_url", "https://ads.api.cj.com/query")
	v.SetDefault("cj.rate_per_minute", 25)

	v.SetDefault("pepperjam.api_key", "")
	v.SetDefault("pepperjam.api_version", "20120402")
	v.SetDefault("pepperjam.base_url", "https://api.pepperjamnetwork.com")
	v.SetDefault("pepperjam.publisher_id", "")
	v.SetDefault("pepperjam.rate_per_minute", 60)

	v.SetDefault("affiliate.cj_click_host", "www.anrdoezrs.net")
	v.SetDefault("affiliate.pepperjam_click_host", "www.pjtra.com")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "15m")

	v.SetDefault("ratelimit.per_ip", 100)

	v.SetDefault("import.default_limit", 20)
	v.SetDefault("import.max_limit", 100)
	v.SetDefault("import.job_timeout", "5m")
	v.SetDefault("import.refresh_window", 5)
	v.SetDefault("import.bulk_concurrency", 5)
	v.SetDefault("import.max_scan", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if !config.CJ.Enabled() && !config.Pepperjam.Enabled() {
		return fmt.Errorf("at least one network must be configured (set CATALOGSYNC_CJ_API_TOKEN and CATALOGSYNC_CJ_COMPANY_ID, or CATALOGSYNC_PEPPERJAM_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return fmt.Errorf("database driver must be 'postgres' or 'sqlite', got: %s", config.Database.Driver)
	}

	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if config.Import.BulkConcurrency < 1 || config.Import.BulkConcurrency > 10 {
		return fmt.Errorf("import bulk_concurrency must be between 1 and 10, got: %d", config.Import.BulkConcurrency)
	}

	if config.Import.DefaultLimit < 1 || config.Import.DefaultLimit > config.Import.MaxLimit {
		return fmt.Errorf("import default_limit must be between 1 and max_limit (%d), got: %d",
			config.Import.MaxLimit, config.Import.DefaultLimit)
	}

	if config.Import.RefreshWindow < 1 {
		return fmt.Errorf("import refresh_window must be positive")
	}

	return nil
}
