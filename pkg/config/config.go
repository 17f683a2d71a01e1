// Package config provides configuration loading and validation for flight-deals.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultMaxStops applies when max_stops is absent. Zero is a valid
	// explicit value, so it is set before decoding.
	DefaultMaxStops = 1
	// DefaultThreshold and DefaultDaysAhead are seeded the same way, since
	// a threshold of 0 and a single-day scan are both meaningful.
	DefaultThreshold = -20.0
	DefaultDaysAhead = 30
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := seeded()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied and both
// built-in sources enabled in synthetic mode.
func Default() *Config {
	cfg := seeded()
	cfg.Sources = []SourceConfig{
		{Type: "amadeus", Name: "amadeus", Enabled: true},
		{Type: "tequila", Name: "tequila", Enabled: true},
	}
	applyDefaults(&cfg)
	return &cfg
}

// seeded returns a Config holding the defaults of fields whose zero value is
// a valid explicit setting. It is decoded into so that absent keys keep them.
func seeded() Config {
	return Config{
		Search:  SearchConfig{MaxStops: DefaultMaxStops},
		Scanner: ScannerConfig{DaysAhead: DefaultDaysAhead},
		Deals:   DealsConfig{Threshold: DefaultThreshold},
	}
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == DriverSQLite {
		cfg.Storage.DSN = filepath.Join("data", "flight_deals.sqlite")
	}

	// Search defaults
	if cfg.Search.Currency == "" {
		cfg.Search.Currency = "EUR"
	}
	cfg.Search.Currency = strings.ToUpper(cfg.Search.Currency)
	if cfg.Search.SourceTimeout.ToDuration() == 0 {
		cfg.Search.SourceTimeout = Duration(20 * time.Second)
	}
	if cfg.Search.Concurrency == 0 {
		cfg.Search.Concurrency = 4
	}
	if cfg.Search.RejectCurrencyMismatch == nil {
		reject := true
		cfg.Search.RejectCurrencyMismatch = &reject
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].Name == "" {
			cfg.Sources[i].Name = cfg.Sources[i].Type
		}
	}

	// Cache defaults
	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		cfg.Cache.Addr = "localhost:6379"
	}
	if cfg.Cache.TTL.ToDuration() == 0 {
		cfg.Cache.TTL = Duration(30 * time.Minute)
	}

	// Deal defaults
	if cfg.Deals.Limit == 0 {
		cfg.Deals.Limit = 50
	}

	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Enabled && cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = ":8081"
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Telegram defaults
	if cfg.Telegram.MaxLines == 0 {
		cfg.Telegram.MaxLines = 80
	}
}

// RejectMismatch reports whether quotes in a currency other than the
// requested one are dropped.
func (c *SearchConfig) RejectMismatch() bool {
	return c.RejectCurrencyMismatch == nil || *c.RejectCurrencyMismatch
}
