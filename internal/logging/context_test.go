// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	if len(a) != 8 {
		t.Errorf("len(GenerateRunID()) = %d, want 8", len(a))
	}
	if a == b {
		t.Error("expected unique run ids")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if RunIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" || ShowFromContext(ctx) != "" {
		t.Fatal("empty context should carry no ids")
	}

	ctx = ContextWithRunID(ctx, "run1")
	ctx = ContextWithRequestID(ctx, "req1")
	ctx = ContextWithShow(ctx, "one-piece")

	if got := RunIDFromContext(ctx); got != "run1" {
		t.Errorf("RunIDFromContext = %q", got)
	}
	if got := RequestIDFromContext(ctx); got != "req1" {
		t.Errorf("RequestIDFromContext = %q", got)
	}
	if got := ShowFromContext(ctx); got != "one-piece" {
		t.Errorf("ShowFromContext = %q", got)
	}
}

func TestCtxAddsFields(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	ctx := ContextWithShow(ContextWithRunID(context.Background(), "abc"), "bleach")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"abc"`) || !strings.Contains(out, `"show":"bleach"`) {
		t.Errorf("Ctx() output missing fields: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	l := WithComponent("listsync")
	l.Info().Msg("x")

	if !strings.Contains(buf.String(), `"component":"listsync"`) {
		t.Errorf("missing component: %s", buf.String())
	}
}
