package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 1 * time.Second
	DefaultRateLimit        = 5.0
	DefaultRateBurst        = 1
	DefaultBreakerFailures  = 5
	DefaultBreakerTimeout   = 60 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 1000
	DefaultQueryTimeout     = 60 * time.Second
	DefaultChunkSize        = 30 * 24 * time.Hour
	DefaultGapTolerance     = 1 * time.Minute
	DefaultCadence          = 100 * time.Millisecond
	DefaultNoiseScale       = 0.01
	DefaultBoundaryLookback = 24 * time.Hour
	DefaultMaxPoints        = 864000 // one day at the default cadence
	DefaultResume           = "next_day"
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultLogMaxSizeMB     = 100
	DefaultLogMaxBackups    = 5
	DefaultLogMaxAgeDays    = 30
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}
	if c.API.BreakerFailures == 0 {
		c.API.BreakerFailures = DefaultBreakerFailures
	}
	if c.API.BreakerTimeout == 0 {
		c.API.BreakerTimeout = DefaultBreakerTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Store defaults
	if c.Store.BatchSize == 0 {
		c.Store.BatchSize = DefaultBatchSize
	}
	if c.Store.QueryTimeout == 0 {
		c.Store.QueryTimeout = DefaultQueryTimeout
	}

	// Scan defaults
	if c.Scan.ChunkSize == 0 {
		c.Scan.ChunkSize = DefaultChunkSize
	}
	if c.Scan.GapTolerance == 0 {
		c.Scan.GapTolerance = DefaultGapTolerance
	}

	// Interpolation defaults
	if c.Interpolation.Cadence == 0 {
		c.Interpolation.Cadence = DefaultCadence
	}
	if c.Interpolation.NoiseScale == 0 {
		c.Interpolation.NoiseScale = DefaultNoiseScale
	}
	if c.Interpolation.BoundaryLookback == 0 {
		c.Interpolation.BoundaryLookback = DefaultBoundaryLookback
	}
	if c.Interpolation.MaxPoints == 0 {
		c.Interpolation.MaxPoints = DefaultMaxPoints
	}

	if c.Collector.Resume == "" {
		c.Collector.Resume = DefaultResume
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
