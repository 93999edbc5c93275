package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/bookfill/internal/config"
	"github.com/rickgao/bookfill/internal/version"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, version.String()) {
		t.Errorf("output = %q, want it to contain %q", got, version.String())
	}
}

func TestSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"collect", "backfill", "gaps", "schema", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestOverrideRange(t *testing.T) {
	base := func() *config.Config {
		cfg := &config.Config{}
		cfg.History.Start = config.Date{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		return cfg
	}

	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{"no overrides", "", "", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}, false},
		{"both", "2024-02-01", "2024-03-01", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"end only", "", "2024-01-05T12:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), false},
		{"bad start", "soon", "", time.Time{}, time.Time{}, true},
		{"end before start", "2024-03-01", "2024-02-01", time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			err := overrideRange(cfg, tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("overrideRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !cfg.History.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", cfg.History.Start.Time, tt.wantStart)
			}
			if !cfg.History.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", cfg.History.End.Time, tt.wantEnd)
			}
		})
	}
}
