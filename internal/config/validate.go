package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/bookfill/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Pair.Exchange == "" {
		return errors.New("pair.exchange is required")
	}
	if _, ok := model.ParseExchange(c.Pair.Exchange); !ok {
		return fmt.Errorf("pair.exchange %q is not a supported exchange", c.Pair.Exchange)
	}
	if c.Pair.Symbol == "" {
		return errors.New("pair.symbol is required")
	}

	if c.History.Start.IsZero() {
		return errors.New("history.start is required")
	}
	if !c.History.End.IsZero() && !c.History.End.After(c.History.Start.Time) {
		return errors.New("history.end must be after history.start")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must be >= 0")
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.Store.BatchSize < 1 {
		return errors.New("store.batch_size must be >= 1")
	}

	if c.Scan.ChunkSize <= 0 {
		return errors.New("scan.chunk_size must be positive")
	}
	if c.Scan.GapTolerance <= 0 {
		return errors.New("scan.gap_tolerance must be positive")
	}

	if c.Interpolation.Cadence <= 0 {
		return errors.New("interpolation.cadence must be positive")
	}
	if c.Interpolation.Cadence >= c.Scan.GapTolerance {
		return fmt.Errorf("interpolation.cadence (%s) must be below scan.gap_tolerance (%s)",
			c.Interpolation.Cadence, c.Scan.GapTolerance)
	}
	if c.Interpolation.NoiseScale < 0 {
		return errors.New("interpolation.noise_scale must be >= 0")
	}
	if c.Interpolation.MaxPoints < 1 {
		return errors.New("interpolation.max_points must be >= 1")
	}

	switch c.Collector.Resume {
	case "next_day", "from_latest", "from_start":
	default:
		return fmt.Errorf("collector.resume must be one of next_day, from_latest, from_start, got %q", c.Collector.Resume)
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
