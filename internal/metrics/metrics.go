// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Polling loop cycles and state
// - Upstream request latency and circuit breakers
// - Tenant cache efficiency
// - Coordinator pushes and sink deliveries
// - Stream subscribers (SSE and WebSocket)
// - API endpoint latency and throughput

var (
	// Loop Scheduler Metrics
	LoopCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_loop_cycles_total",
			Help: "Total number of loop update cycles",
		},
		[]string{"kind", "result"}, // result: "success", "retry", "stop"
	)

	LoopCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presence_loop_cycle_duration_seconds",
			Help:    "Duration of loop update cycles in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	LoopsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_loops",
			Help: "Current number of loops by state",
		},
		[]string{"kind", "state"},
	)

	// Upstream Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Total number of upstream API errors by kind",
		},
		[]string{"operation", "kind"},
	)

	// Tenant Cache Metrics
	TenantCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_cache_hits_total",
			Help: "Total number of tenant cache hits",
		},
		[]string{"resource"},
	)

	TenantCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_cache_misses_total",
			Help: "Total number of tenant cache misses that started an upstream fetch",
		},
		[]string{"resource"},
	)

	TenantCacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_cache_coalesced_total",
			Help: "Total number of callers attached to an in-flight fetch",
		},
		[]string{"resource"},
	)

	TenantCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_cache_entries",
			Help: "Current number of cached tenant resources",
		},
	)

	// Coordinator Metrics
	TrackedEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_tracked_entities",
			Help: "Current number of tracked entities",
		},
	)

	DescriptorPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_descriptor_pushes_total",
			Help: "Total number of descriptor changes pushed downstream",
		},
		[]string{"transition"}, // "online", "offline", "changed"
	)

	DescriptorDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_descriptor_deduplicated_total",
			Help: "Total number of recomputes suppressed because nothing changed",
		},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_sink_errors_total",
			Help: "Total number of sink delivery failures",
		},
		[]string{"sink"},
	)

	SinkQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_sink_queue_dropped_total",
			Help: "Total number of notifications dropped because the queue was full",
		},
	)

	SinkActivityCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_sink_activity_coalesced_total",
			Help: "Total number of pending descriptors replaced by a newer one before delivery",
		},
	)

	// Stream Metrics
	StreamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_subscribers",
			Help: "Current number of stream subscribers",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	StreamEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_events_sent_total",
			Help: "Total number of events delivered to subscriber buffers",
		},
	)

	StreamSlowDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_slow_disconnects_total",
			Help: "Total number of subscribers disconnected because their buffer was full",
		},
	)

	// API Endpoint Metrics
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

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
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
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordLoopCycle records one loop cycle and its outcome.
func RecordLoopCycle(kind, result string, duration time.Duration) {
	LoopCycles.WithLabelValues(kind, result).Inc()
	LoopCycleDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordLoopTransition moves one loop of the given kind between state gauges.
// An empty from or to state skips that side.
func RecordLoopTransition(kind, from, to string) {
	if from != "" {
		LoopsByState.WithLabelValues(kind, from).Dec()
	}
	if to != "" {
		LoopsByState.WithLabelValues(kind, to).Inc()
	}
}

// RecordUpstreamRequest records an upstream request and, on failure, its error kind.
func RecordUpstreamRequest(operation string, duration time.Duration, errKind string) {
	UpstreamRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errKind != "" {
		UpstreamErrors.WithLabelValues(operation, errKind).Inc()
	}
}

// RecordTenantFetch records the outcome of one tenant cache lookup.
// outcome is one of "hit", "miss" or "coalesced".
func RecordTenantFetch(resource, outcome string) {
	switch outcome {
	case "hit":
		TenantCacheHits.WithLabelValues(resource).Inc()
	case "miss":
		TenantCacheMisses.WithLabelValues(resource).Inc()
	case "coalesced":
		TenantCacheCoalesced.WithLabelValues(resource).Inc()
	}
}
