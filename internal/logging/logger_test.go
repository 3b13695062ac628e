// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "auto" {
		t.Errorf("Format = %q, want auto", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("Timestamp = false, want true")
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("MaxBackups = %d, want 5", cfg.MaxBackups)
	}
}

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("show", "naruto").Msg("reconciling")

	out := buf.String()
	for _, want := range []string{`"level":"info"`, `"show":"naruto"`, `"message":"reconciling"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestInit_AutoFormatWithBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "auto", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("plain")

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("auto format on a non-terminal should emit JSON, got %q", buf.String())
	}
}

func TestInit_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("console line")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output should not be JSON, got %q", out)
	}
	if !strings.Contains(out, "console line") {
		t.Errorf("console output missing message: %q", out)
	}
}

func TestInit_FileRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episodarr.log")

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf, File: path, MaxSizeMB: 1})
	Info().Msg("to file")
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	Init(DefaultConfig())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to file"`) {
		t.Errorf("log file should hold JSON lines, got %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("hidden")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message emitted at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
	if CurrentLevel() != "warn" {
		t.Errorf("CurrentLevel() = %q, want warn", CurrentLevel())
	}
}

func TestErr(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Err(os.ErrNotExist).Msg("lookup failed")

	if !strings.Contains(buf.String(), `"error":"file does not exist"`) {
		t.Errorf("missing error field: %q", buf.String())
	}
}
