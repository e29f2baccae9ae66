// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/metrics"
)

// ChiMiddlewareConfig holds CORS and rate limit settings.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns read-only API defaults.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID", "X-Request-ID"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddlewareConfigFrom maps the api configuration section.
func ChiMiddlewareConfigFrom(cfg config.APIConfig) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RateLimitReqs > 0 {
		c.RateLimitRequests = cfg.RateLimitReqs
	}
	if cfg.RateLimitWindow > 0 {
		c.RateLimitWindow = cfg.RateLimitWindow
	}
	c.RateLimitDisabled = cfg.RateLimitDisabled
	return c
}

// ChiMiddleware builds the go-chi/cors and httprate middleware.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware set. A nil config uses defaults.
func NewChiMiddleware(cfg *ChiMiddlewareConfig) *ChiMiddleware {
	if cfg == nil {
		cfg = DefaultChiMiddlewareConfig()
	}
	return &ChiMiddleware{
		config: cfg,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: cfg.CORSAllowedMethods,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         cfg.CORSMaxAge,
		}),
	}
}

// CORS returns the CORS handler. It must be global to answer preflights.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits requests per client IP. Stream endpoints count once per
// connection.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.rateLimit(m.config.RateLimitRequests, m.config.RateLimitWindow, "api")
}

// RateLimitHealth is the permissive limit for health checks.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.rateLimit(1000, time.Minute, "health")
}

func (m *ChiMiddleware) rateLimit(requests int, window time.Duration, group string) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(group).Inc()
			respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests", nil)
		}),
	)
}

// APISecurityHeaders sets headers for JSON API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
