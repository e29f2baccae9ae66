// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and are
exposed at /metrics in Prometheus text format:

	curl http://localhost:8787/metrics

# Available Metrics

Loop Metrics:
  - presence_loop_cycles_total: Update cycles (counter)
    Labels: kind, result
  - presence_loop_cycle_duration_seconds: Cycle latency (histogram)
  - presence_loops: Loops by state (gauge)
    Labels: kind, state

Upstream Metrics:
  - upstream_request_duration_seconds: Upstream latency (histogram)
  - upstream_errors_total: Failures by error kind (counter)
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)

Distribution Metrics:
  - tenant_cache_hits_total, tenant_cache_misses_total, tenant_cache_coalesced_total
  - presence_descriptor_pushes_total: Pushes by transition (counter)
  - stream_subscribers: Live subscribers by transport (gauge)
  - stream_slow_disconnects_total: Subscribers dropped for a full buffer

API Metrics:
  - api_requests_total, api_request_duration_seconds, api_active_requests

# Thread Safety

All metric operations are thread-safe. Prometheus client library handles
concurrent access internally.
*/
package metrics
