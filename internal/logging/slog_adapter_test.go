// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewSlogLogger_RoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer Init(DefaultConfig())

	l := NewSlogLogger("supervisor")
	l.Warn("service restarted",
		"service", "scheduler",
		"attempt", 3,
		"backoff", 2*time.Second,
		"err", errors.New("boom"),
	)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"component":"supervisor"`,
		`"service":"scheduler"`,
		`"attempt":3`,
		`"err":"boom"`,
		`"message":"service restarted"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestSlogHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	l := NewSlogLogger("").WithGroup("bus").With("topic", "runs")
	l.Info("published", slog.Group("msg", "id", "m1"))

	out := buf.String()
	if !strings.Contains(out, `"bus.topic":"runs"`) {
		t.Errorf("missing grouped attr: %s", out)
	}
	if !strings.Contains(out, `"bus.msg.id":"m1"`) {
		t.Errorf("missing nested group attr: %s", out)
	}
}

func TestSlogHandler_EnabledRespectsGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	defer Init(DefaultConfig())

	l := NewSlogLogger("x")
	l.Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %s", buf.String())
	}
}

func TestToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := toZerologLevel(tt.in); got != tt.want {
			t.Errorf("toZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
