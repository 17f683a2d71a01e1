package config

import "time"

// Config is the root configuration structure
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Sources  []SourceConfig `yaml:"sources"`
	Cache    CacheConfig    `yaml:"cache"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Deals    DealsConfig    `yaml:"deals"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// StorageConfig selects the price history backend
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// SearchConfig holds defaults applied to every fan-out search
type SearchConfig struct {
	Currency               string   `yaml:"currency"`
	MaxStops               int      `yaml:"max_stops"`
	SourceTimeout          Duration `yaml:"source_timeout"`
	Concurrency            int      `yaml:"concurrency"`
	RejectCurrencyMismatch *bool    `yaml:"reject_currency_mismatch"`
}

// SourceConfig configures a quote source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// CacheConfig configures the optional Redis quote cache
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// ScannerConfig configures which routes and dates a scan covers
type ScannerConfig struct {
	Origins         []string `yaml:"origins"`
	Destinations    []string `yaml:"destinations"`
	DestinationsCSV string   `yaml:"destinations_csv"`
	DaysAhead       int      `yaml:"days_ahead"`
	Interval        Duration `yaml:"interval"` // serve mode only, 0 disables periodic scans
}

// DealsConfig holds deal query defaults
type DealsConfig struct {
	Threshold float64 `yaml:"threshold"`
	Limit     int     `yaml:"limit"`
	ExportCSV string  `yaml:"export_csv"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	HTTP      HTTPConfig `yaml:"http"`
	WebSocket WSConfig   `yaml:"websocket"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TelegramConfig configures the chat bot front end
type TelegramConfig struct {
	Token         string `yaml:"token"`
	AllowedChatID int64  `yaml:"allowed_chat_id"` // 0 accepts every chat
	MaxLines      int    `yaml:"max_lines"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
