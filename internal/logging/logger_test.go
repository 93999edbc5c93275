package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/bookfill/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, config.LoggingConfig{Level: "info", Format: "json"}))

	logger.Debug("hidden")
	logger.Info("gap found", "start", "2023-01-01")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "gap found" {
		t.Errorf("msg = %v, want %q", rec["msg"], "gap found")
	}
	if rec["start"] != "2023-01-01" {
		t.Errorf("start = %v, want %q", rec["start"], "2023-01-01")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookfill.log")
	logger, out := New(config.LoggingConfig{Level: "debug", Format: "text", File: path, MaxSizeMB: 1})

	logger.Debug("written to file")

	closer, ok := out.(io.Closer)
	if !ok {
		t.Fatal("file output should be closable")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
