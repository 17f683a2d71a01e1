// Package config provides configuration loading and validation for flight-deals.
package config

import "errors"

var (
	// ErrInvalidDriver indicates that the storage driver is not supported.
	ErrInvalidDriver = errors.New("invalid storage driver")
	// ErrDSNRequired indicates that the storage DSN is empty.
	ErrDSNRequired = errors.New("storage dsn must be specified")
	// ErrInvalidCurrency indicates that the default currency is not a 3-letter code.
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
	// ErrNegativeMaxStops indicates that max_stops is negative.
	ErrNegativeMaxStops = errors.New("max_stops must be >= 0")
	// ErrInvalidConcurrency indicates that search concurrency is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be > 0")
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrDuplicateSourceName indicates that two sources share a name.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrInvalidLimit indicates that the deals limit is not positive.
	ErrInvalidLimit = errors.New("deals limit must be > 0")
	// ErrInvalidDaysAhead indicates that days_ahead is negative.
	ErrInvalidDaysAhead = errors.New("days_ahead must be >= 0")
	// ErrCacheAddrRequired indicates that the cache is enabled without an address.
	ErrCacheAddrRequired = errors.New("cache addr must be specified when cache is enabled")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
