// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package models

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds shared by every component. Match with errors.Is; wrap with %w.
var (
	// ErrTransientNetwork covers timeouts, connection resets and 5xx responses.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrRateLimited is returned when the remote service answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthExpired means the stored credential is no longer accepted.
	// Remote calls for the rest of the run are skipped once it is seen.
	ErrAuthExpired = errors.New("authorization expired")

	ErrMatchUnresolved = errors.New("match unresolved")

	// ErrOverrideInconsistent marks an override whose target title does not exist.
	ErrOverrideInconsistent = errors.New("override target not found")

	ErrSyncPartialFailure = errors.New("sync partially failed")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrAlreadyRunning     = errors.New("already running")
	ErrNotFound           = errors.New("not found")
)

// RateLimitError carries the server's Retry-After hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Unwrap lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// HTTPStatusError records a non-success response from a remote service.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Service, e.StatusCode)
}

// Unwrap classifies the status code into an error kind.
func (e *HTTPStatusError) Unwrap() error {
	switch {
	case e.StatusCode == 401:
		return ErrAuthExpired
	case e.StatusCode == 404:
		return ErrNotFound
	case e.StatusCode == 429:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrTransientNetwork
	}
	return nil
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrAuthExpired) {
		return false
	}
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrRateLimited)
}
