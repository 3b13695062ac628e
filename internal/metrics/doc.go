// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

/*
Package metrics defines the Prometheus collectors for Episodarr.

All collectors are registered on the default registry through promauto and
exported at /metrics by the HTTP API:

	curl http://localhost:8585/metrics

Outbound traffic:
  - episodarr_outbound_requests_total{service,operation,status}
  - episodarr_outbound_request_duration_seconds{service,operation}
  - episodarr_retry_attempts_total{service,kind}
  - episodarr_rate_limiter_wait_seconds{bucket}
  - episodarr_circuit_breaker_state{name}

Reconciliation:
  - episodarr_run_duration_seconds{scope_kind}
  - episodarr_runs_total{scope_kind,outcome}
  - episodarr_reconcile_states_total{type,state}
  - episodarr_list_additions_total{type}
  - episodarr_unresolved_matches

Example alert:

	increase(episodarr_runs_total{outcome="failed"}[1d]) > 0
*/
package metrics
