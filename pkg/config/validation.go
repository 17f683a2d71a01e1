package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateStorageConfig(&cfg.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := validateSearchConfig(&cfg.Search); err != nil {
		return fmt.Errorf("search config: %w", err)
	}

	if err := validateSources(cfg.Sources); err != nil {
		return fmt.Errorf("sources: %w", err)
	}

	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		return fmt.Errorf("cache config: %w", ErrCacheAddrRequired)
	}

	if cfg.Scanner.DaysAhead < 0 {
		return fmt.Errorf("scanner config: %w", ErrInvalidDaysAhead)
	}

	if cfg.Deals.Limit <= 0 {
		return fmt.Errorf("deals config: %w", ErrInvalidLimit)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateStorageConfig(cfg *StorageConfig) error {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return fmt.Errorf("%w: %s (must be '%s' or '%s')", ErrInvalidDriver, cfg.Driver, DriverSQLite, DriverPostgres)
	}
	if cfg.DSN == "" {
		return ErrDSNRequired
	}
	return nil
}

func validateSearchConfig(cfg *SearchConfig) error {
	if len(cfg.Currency) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, cfg.Currency)
	}
	if cfg.MaxStops < 0 {
		return ErrNegativeMaxStops
	}
	if cfg.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	return nil
}

func validateSources(list []SourceConfig) error {
	seen := make(map[string]bool, len(list))
	enabled := 0
	for i, source := range list {
		if source.Type == "" {
			return fmt.Errorf("source %d: %w", i, ErrSourceTypeRequired)
		}
		if seen[source.Name] {
			return fmt.Errorf("source %d: %w: %s", i, ErrDuplicateSourceName, source.Name)
		}
		seen[source.Name] = true
		if source.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoSourcesEnabled
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
