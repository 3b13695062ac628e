// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
	showKey      contextKey = "show"
)

// GenerateRunID returns a short identifier for one reconciliation run.
func GenerateRunID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a full UUID for one HTTP request.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRunID returns a context carrying the run id.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run id or "".
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a context carrying the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithShow tags the context with the show slug being processed.
func ContextWithShow(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, showKey, slug)
}

// ShowFromContext returns the show slug or "".
func ShowFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(showKey).(string); ok {
		return s
	}
	return ""
}

// Ctx returns the global logger enriched with run_id, request_id and show
// fields found in ctx.
//
//	logging.Ctx(ctx).Info().Int("added", n).Msg("List updated")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	if id := RunIDFromContext(ctx); id != "" {
		lc = lc.Str("run_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if s := ShowFromContext(ctx); s != "" {
		lc = lc.Str("show", s)
	}
	l := lc.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
