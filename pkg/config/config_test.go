package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
storage:
  driver: sqlite
  dsn: ${FD_TEST_DSN}
search:
  currency: eur
  max_stops: 2
  source_timeout: 5s
sources:
  - type: amadeus
    enabled: true
    config:
      client_id: ${FD_TEST_CLIENT_ID}
      max_results: 5
  - type: tequila
    name: kiwi
    enabled: false
deals:
  threshold: -35
scanner:
  origins: [RIX, TLL]
  interval: 6h
`

func TestParse_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("FD_TEST_DSN", "/tmp/prices.sqlite")
	t.Setenv("FD_TEST_CLIENT_ID", "abc")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/prices.sqlite", cfg.Storage.DSN)
	assert.Equal(t, "EUR", cfg.Search.Currency)
	assert.Equal(t, 2, cfg.Search.MaxStops)
	assert.Equal(t, 5*time.Second, cfg.Search.SourceTimeout.ToDuration())
	assert.Equal(t, 4, cfg.Search.Concurrency)
	assert.True(t, cfg.Search.RejectMismatch())

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "amadeus", cfg.Sources[0].Name)
	assert.Equal(t, "abc", cfg.Sources[0].Config["client_id"])
	assert.Equal(t, 5, cfg.Sources[0].Config["max_results"])
	assert.Equal(t, "kiwi", cfg.Sources[1].Name)

	assert.Equal(t, -35.0, cfg.Deals.Threshold)
	assert.Equal(t, 50, cfg.Deals.Limit)
	assert.Equal(t, 30, cfg.Scanner.DaysAhead)
	assert.Equal(t, 6*time.Hour, cfg.Scanner.Interval.ToDuration())
	assert.Equal(t, 80, cfg.Telegram.MaxLines)

	require.NoError(t, Validate(cfg))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join("data", "flight_deals.sqlite"), cfg.Storage.DSN)
	assert.Equal(t, -20.0, cfg.Deals.Threshold)
	assert.Equal(t, DefaultMaxStops, cfg.Search.MaxStops)
}

func TestParse_MaxStops(t *testing.T) {
	cfg, err := Parse([]byte("search:\n  currency: EUR\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxStops, cfg.Search.MaxStops)

	cfg, err = Parse([]byte("search:\n  max_stops: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Search.MaxStops)
}

func TestParse_ExplicitZeros(t *testing.T) {
	cfg, err := Parse([]byte("scanner:\n  origins: [RIX]\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaysAhead, cfg.Scanner.DaysAhead)
	assert.Equal(t, DefaultThreshold, cfg.Deals.Threshold)

	cfg, err = Parse([]byte("scanner:\n  days_ahead: 0\ndeals:\n  threshold: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Scanner.DaysAhead)
	assert.Equal(t, 0.0, cfg.Deals.Threshold)
	assert.Equal(t, 50, cfg.Deals.Limit)
	require.NoError(t, Validate(cfg))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad driver", func(c *Config) { c.Storage.Driver = "mysql" }, ErrInvalidDriver},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres; c.Storage.DSN = "" }, ErrDSNRequired},
		{"bad currency", func(c *Config) { c.Search.Currency = "EURO" }, ErrInvalidCurrency},
		{"negative stops", func(c *Config) { c.Search.MaxStops = -1 }, ErrNegativeMaxStops},
		{"no enabled sources", func(c *Config) {
			for i := range c.Sources {
				c.Sources[i].Enabled = false
			}
		}, ErrNoSourcesEnabled},
		{"duplicate names", func(c *Config) { c.Sources[1].Name = c.Sources[0].Name }, ErrDuplicateSourceName},
		{"zero limit", func(c *Config) { c.Deals.Limit = 0 }, ErrInvalidLimit},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.want)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  currency: usd\nsources:\n  - type: amadeus\n    enabled: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Search.Currency)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FD_TEST_FROM_ENV_FILE=hello\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FD_TEST_FROM_ENV_FILE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "hello", os.Getenv("FD_TEST_FROM_ENV_FILE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env")))
	assert.NoError(t, LoadEnvFile(""))
}
