package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
pair:
  exchange: BINANCE
  symbol: ETH-USDT
history:
  start: 2020-10-10
  end: 2023-10-10T12:00:00Z
api:
  base_url: https://lake.example.com/v1
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
scan:
  chunk_size: 168h
  gap_tolerance: 30s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pair.Exchange != "BINANCE" {
		t.Errorf("Pair.Exchange = %q, want %q", cfg.Pair.Exchange, "BINANCE")
	}
	if cfg.API.BaseURL != "https://lake.example.com/v1" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://lake.example.com/v1")
	}
	wantStart := time.Date(2020, 10, 10, 0, 0, 0, 0, time.UTC)
	if !cfg.History.Start.Equal(wantStart) {
		t.Errorf("History.Start = %v, want %v", cfg.History.Start.Time, wantStart)
	}
	wantEnd := time.Date(2023, 10, 10, 12, 0, 0, 0, time.UTC)
	if !cfg.History.End.Equal(wantEnd) {
		t.Errorf("History.End = %v, want %v", cfg.History.End.Time, wantEnd)
	}
	if cfg.Scan.ChunkSize != 168*time.Hour {
		t.Errorf("Scan.ChunkSize = %v, want %v", cfg.Scan.ChunkSize, 168*time.Hour)
	}
	if cfg.Scan.GapTolerance != 30*time.Second {
		t.Errorf("Scan.GapTolerance = %v, want %v", cfg.Scan.GapTolerance, 30*time.Second)
	}
}

func TestLoadInvalidDate(t *testing.T) {
	path := writeTempFile(t, "history:\n  start: 10/10/2020\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for malformed date, got nil")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("BOOKFILL_TEST_API_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BOOKFILL_TEST_API_KEY", "")
	os.Unsetenv("BOOKFILL_TEST_API_KEY")

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("BOOKFILL_TEST_API_KEY"); got != "from-dotenv" {
		t.Errorf("BOOKFILL_TEST_API_KEY = %q, want %q", got, "from-dotenv")
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) = %v, want nil", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
pair:
  exchange: BINANCE
  symbol: ETH-USDT
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Scan.ChunkSize != 30*24*time.Hour {
		t.Errorf("Scan.ChunkSize = %v, want default %v", cfg.Scan.ChunkSize, 30*24*time.Hour)
	}
	if cfg.Scan.GapTolerance != time.Minute {
		t.Errorf("Scan.GapTolerance = %v, want default %v", cfg.Scan.GapTolerance, time.Minute)
	}
	if cfg.Interpolation.Cadence != 100*time.Millisecond {
		t.Errorf("Interpolation.Cadence = %v, want default %v", cfg.Interpolation.Cadence, 100*time.Millisecond)
	}
	if cfg.Interpolation.NoiseScale != DefaultNoiseScale {
		t.Errorf("Interpolation.NoiseScale = %v, want default %v", cfg.Interpolation.NoiseScale, DefaultNoiseScale)
	}
	if cfg.Collector.Resume != DefaultResume {
		t.Errorf("Collector.Resume = %q, want default %q", cfg.Collector.Resume, DefaultResume)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestValidate(t *testing.T) {
	start := Date{time.Date(2020, 10, 10, 0, 0, 0, 0, time.UTC)}
	db := DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 4, MinConns: 1}

	valid := func() Config {
		cfg := Config{
			Pair:     PairConfig{Exchange: "binance", Symbol: "ETH-USDT"},
			History:  HistoryConfig{Start: start},
			API:      APIConfig{BaseURL: "http://localhost"},
			Database: DatabaseConfig{Timescale: db},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing exchange",
			mutate:  func(c *Config) { c.Pair.Exchange = "" },
			wantErr: "pair.exchange is required",
		},
		{
			name:    "unknown exchange",
			mutate:  func(c *Config) { c.Pair.Exchange = "MTGOX" },
			wantErr: `pair.exchange "MTGOX" is not a supported exchange`,
		},
		{
			name:    "missing start",
			mutate:  func(c *Config) { c.History.Start = Date{} },
			wantErr: "history.start is required",
		},
		{
			name:    "end before start",
			mutate:  func(c *Config) { c.History.End = Date{start.AddDate(0, 0, -1)} },
			wantErr: "history.end must be after history.start",
		},
		{
			name:    "missing timescale password",
			mutate:  func(c *Config) { c.Database.Timescale.Password = "" },
			wantErr: "database.timescale.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.Timescale.MaxConns = 5
				c.Database.Timescale.MinConns = 10
			},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "cadence not below tolerance",
			mutate:  func(c *Config) { c.Interpolation.Cadence = 2 * time.Minute },
			wantErr: "interpolation.cadence (2m0s) must be below scan.gap_tolerance (1m0s)",
		},
		{
			name:    "bad resume strategy",
			mutate:  func(c *Config) { c.Collector.Resume = "yesterday" },
			wantErr: `collector.resume must be one of next_day, from_latest, from_start, got "yesterday"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
