// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package metrics holds the process-wide Prometheus collectors.
//
// Collectors are registered on the default registry through promauto and
// exposed by the BFF at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend adapter metrics
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of calls sent to the credential backend",
		},
		[]string{"mode", "method", "outcome"}, // outcome: success, backend_error, connectivity_error, canceled
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode", "method"},
	)

	BackendUnwrappedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backend_unwrapped_responses_total",
			Help: "Webhook responses whose single-element json wrapper was removed",
		},
	)

	// Notification bus metrics
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notifications published on the bus",
		},
		[]string{"kind"},
	)

	NotificationSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_subscribers",
			Help: "Current number of notification bus subscribers",
		},
	)

	// Dashboard facade metrics
	DashboardValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_validation_errors_total",
			Help: "Facade calls rejected before reaching the backend",
		},
		[]string{"operation"},
	)

	DashboardDemoFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_demo_fallbacks_total",
			Help: "Facade reads answered with demo data after a backend failure",
		},
		[]string{"operation"},
	)

	DashboardFacadeBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_facade_builds_total",
			Help: "Facades constructed for a new base URL and credential pair",
		},
	)

	// Session store metrics
	SessionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_mutations_total",
			Help: "Session store writes by field and action",
		},
		[]string{"field", "action"}, // action: set, clear
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"message_type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordBackendRequest records one adapter call.
func RecordBackendRequest(mode, method, outcome string, duration time.Duration) {
	BackendRequestsTotal.WithLabelValues(mode, method, outcome).Inc()
	BackendRequestDuration.WithLabelValues(mode, method).Observe(duration.Seconds())
}

// RecordAPIRequest records one inbound BFF request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
