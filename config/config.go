package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"brainrotMarket/internal/adapters/logger" // Import the logger package for LogLevel
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds all application configuration.
type Config struct {
	// Storage
	StoreDriver     string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	DBPath          string        `envconfig:"DB_PATH" default:"./data/brainrot_market.db"`
	MongoURI        string        `envconfig:"MONGODB_URI"`
	MongoDatabase   string        `envconfig:"MONGODB_DATABASE" default:"brainrot_market"`
	MongoTimeout    time.Duration `envconfig:"MONGODB_TIMEOUT" default:"30s"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`

	// Trading rules
	FairnessThreshold float64       `envconfig:"FAIRNESS_THRESHOLD" default:"0.05"` // Fraction, 0.05 = 5%
	TradeTTL          time.Duration `envconfig:"TRADE_TTL" default:"168h"`

	// HTTP
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// Background work
	NotifyBuffer           int    `envconfig:"NOTIFY_BUFFER" default:"256"`
	CatalogRefreshSchedule string `envconfig:"CATALOG_REFRESH_SCHEDULE" default:"@every 10m"` // Empty disables the job

	// Logging
	LogLevelRaw string          `envconfig:"LOG_LEVEL" default:"INFO"`
	LogLevel    logger.LogLevel `ignored:"true"` // Parsed from LogLevelRaw
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogLevel = logger.ParseLevel(cfg.LogLevelRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate collects every invalid setting into one error.
func (c *Config) Validate() error {
	var errs []string

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, "DB_PATH must be set")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, "MONGODB_URI must be set when STORE_DRIVER=mongo")
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGODB_DATABASE must be set")
		}
		if c.MongoTimeout <= 0 {
			errs = append(errs, "MONGODB_TIMEOUT must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMongo, c.StoreDriver))
	}

	if c.FairnessThreshold < 0 || c.FairnessThreshold >= 1.0 {
		errs = append(errs, "FAIRNESS_THRESHOLD must be in [0.0, 1.0)")
	}
	if c.TradeTTL <= 0 {
		errs = append(errs, "TRADE_TTL must be positive")
	}
	if c.CatalogCacheTTL < 0 {
		errs = append(errs, "CATALOG_CACHE_TTL cannot be negative")
	}
	if c.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must be set")
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT must be positive")
	}
	if c.NotifyBuffer <= 0 {
		errs = append(errs, "NOTIFY_BUFFER must be positive")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
