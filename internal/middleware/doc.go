// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package middleware provides HTTP middleware shared by every route.

  - RequestID: propagates or generates X-Request-ID and seeds the logging
    context with request and correlation IDs
  - PrometheusMetrics: request counts, durations and in-flight gauge,
    labelled by chi route pattern so path parameters do not explode
    label cardinality

Both are chi-style func(http.Handler) http.Handler and are installed on the
router with r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper keeps http.Flusher and http.Hijacker available so SSE
and WebSocket handlers work behind it.
*/
package middleware
