// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

/*
Package trakt is the tracking-service client.

Every call goes through the same pipeline:

	limiter (read or write bucket) -> retry policy -> circuit breaker -> HTTP

Status codes are classified into the error taxonomy of internal/models:
429 becomes *models.RateLimitError carrying Retry-After, 401 becomes
models.ErrAuthExpired, 5xx and network failures become
models.ErrTransientNetwork. Only the last two are retried.

Authentication uses the OAuth device-code flow. Tokens live in a file
(optionally AES-GCM sealed) and are refreshed automatically when they are
about to expire.
*/
package trakt
