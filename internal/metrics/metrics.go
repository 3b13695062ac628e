// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/episodarr/internal/models"
)

var (
	// Outbound requests (service: trakt, catalog, plex, discord)
	OutboundRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_outbound_requests_total",
			Help: "Outbound HTTP requests by service, operation and status code",
		},
		[]string{"service", "operation", "status"},
	)

	OutboundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "episodarr_outbound_request_duration_seconds",
			Help:    "Outbound HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_retry_attempts_total",
			Help: "Retries performed by the retry policy, by error kind",
		},
		[]string{"service", "kind"}, // kind: rate_limited, transient
	)

	LimiterWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "episodarr_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate limiter token",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"bucket"}, // read, write, catalog
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "episodarr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_circuit_breaker_requests_total",
			Help: "Requests seen by the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Runs
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "episodarr_run_duration_seconds",
			Help:    "Duration of reconciliation runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"scope_kind"}, // show, service
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_runs_total",
			Help: "Completed runs by outcome",
		},
		[]string{"scope_kind", "outcome"}, // ok, failed, rejected
	)

	TypeStates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_reconcile_states_total",
			Help: "Terminal reconcile states per (show, type) unit",
		},
		[]string{"type", "state"},
	)

	ListAdditions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_list_additions_total",
			Help: "Episodes added to remote lists",
		},
		[]string{"type"},
	)

	ListAddFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_list_add_failures_total",
			Help: "Episodes that could not be added (failed batches or not_found)",
		},
		[]string{"type"},
	)

	UnresolvedMatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "episodarr_unresolved_matches",
			Help: "Unresolved catalog titles currently recorded",
		},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "episodarr_last_successful_run_timestamp",
			Help: "Unix time of the last batch run that finished without a show failure",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "episodarr_api_request_duration_seconds",
			Help:    "HTTP API latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "episodarr_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "episodarr_websocket_messages_sent_total",
			Help: "WebSocket messages sent",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episodarr_notifications_total",
			Help: "Notifications delivered by channel and result",
		},
		[]string{"channel", "result"},
	)
)

// RecordOutbound records one outbound request. status is the HTTP code, or 0
// when no response arrived.
func RecordOutbound(service, operation string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	OutboundRequests.WithLabelValues(service, operation, code).Inc()
	OutboundDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRetry classifies err and counts one retry.
func RecordRetry(service string, err error) {
	kind := "transient"
	if errors.Is(err, models.ErrRateLimited) {
		kind = "rate_limited"
	}
	RetryAttempts.WithLabelValues(service, kind).Inc()
}

// RecordLimiterWait records how long a caller blocked on a token bucket.
func RecordLimiterWait(bucket string, d time.Duration) {
	LimiterWait.WithLabelValues(bucket).Observe(d.Seconds())
}

// RecordTypeOutcome records the terminal state of one (show, type) unit.
func RecordTypeOutcome(tr *models.TypeReport) {
	TypeStates.WithLabelValues(string(tr.Type), string(tr.State)).Inc()
	if tr.Sync == nil {
		return
	}
	if n := len(tr.Sync.Added); n > 0 {
		ListAdditions.WithLabelValues(string(tr.Type)).Add(float64(n))
	}
	if n := len(tr.Sync.Failed); n > 0 {
		ListAddFailures.WithLabelValues(string(tr.Type)).Add(float64(n))
	}
}

// RecordRun records a finished run.
func RecordRun(scopeKind string, duration time.Duration, failed bool) {
	RunDuration.WithLabelValues(scopeKind).Observe(duration.Seconds())
	outcome := "ok"
	if failed {
		outcome = "failed"
	} else if scopeKind == "service" {
		LastSuccessfulRun.Set(float64(time.Now().Unix()))
	}
	RunsTotal.WithLabelValues(scopeKind, outcome).Inc()
}

// RecordRunRejected counts a run refused because its scope was already running.
func RecordRunRejected(scopeKind string) {
	RunsTotal.WithLabelValues(scopeKind, "rejected").Inc()
}

// RecordAPIRequest records one HTTP API request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordNotification records one notification delivery attempt.
func RecordNotification(channel string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	NotificationsSent.WithLabelValues(channel, result).Inc()
}
