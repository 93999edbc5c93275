package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a bookfill run.
type Config struct {
	Pair          PairConfig          `yaml:"pair"`
	History       HistoryConfig       `yaml:"history"`
	API           APIConfig           `yaml:"api"`
	Database      DatabaseConfig      `yaml:"database"`
	Store         StoreConfig         `yaml:"store"`
	Scan          ScanConfig          `yaml:"scan"`
	Interpolation InterpolationConfig `yaml:"interpolation"`
	Collector     CollectorConfig     `yaml:"collector"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PairConfig identifies the exchange/symbol pair the store holds.
type PairConfig struct {
	Exchange string `yaml:"exchange"` // e.g. BINANCE
	Symbol   string `yaml:"symbol"`   // e.g. ETH-USDT
}

// HistoryConfig bounds the historical range kept gap-free.
type HistoryConfig struct {
	Start Date `yaml:"start"`
	End   Date `yaml:"end"` // zero means "now" at run time
}

// APIConfig holds market-data source settings.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second
	RateBurst       int           `yaml:"rate_burst"`
	BreakerFailures uint32        `yaml:"breaker_failures"` // consecutive failures before the breaker opens
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`  // open -> half-open delay
}

// DatabaseConfig holds the TimescaleDB connection for snapshot data.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// ScanConfig holds gap scanner settings.
type ScanConfig struct {
	ChunkSize    time.Duration `yaml:"chunk_size"`
	GapTolerance time.Duration `yaml:"gap_tolerance"`
	EdgeGaps     bool          `yaml:"edge_gaps"` // also report holes at chunk edges
}

// InterpolationConfig holds synthetic fill settings.
type InterpolationConfig struct {
	Cadence          time.Duration `yaml:"cadence"`
	NoiseScale       float64       `yaml:"noise_scale"`
	Seed             uint64        `yaml:"seed"` // 0 seeds from the clock
	BoundaryLookback time.Duration `yaml:"boundary_lookback"`
	MaxPoints        int           `yaml:"max_points"`
}

// CollectorConfig holds daily collector settings.
type CollectorConfig struct {
	Resume string `yaml:"resume"` // next_day, from_latest, from_start
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // empty logs to stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Date is a point in time parsed from either a calendar date (2006-01-02)
// or an RFC 3339 timestamp. Calendar dates are midnight UTC.
type Date struct {
	time.Time
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses a calendar date or RFC 3339 timestamp. Empty input yields
// the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}
