// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/presencewatch/internal/auth"
	"github.com/tomtom215/presencewatch/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. The auth middleware should be built with
// AuthErrorFunc so failures use the API envelope.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, chiMiddleware *ChiMiddleware) *Router {
	if chiMiddleware == nil {
		chiMiddleware = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		auth:          authMiddleware,
		chiMiddleware: chiMiddleware,
	}
}

// AuthErrorFunc writes auth failures in the API envelope.
func AuthErrorFunc() auth.ErrorFunc {
	return authError
}

// Setup configures all routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Not found", nil)
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(router.auth.Authenticate)

		r.Route("/accounts/{key}", func(r chi.Router) {
			r.Use(router.auth.RequireAccount("key"))
			r.Get("/user", router.handler.AccountUser)
			r.Get("/friends", router.handler.AccountFriends)
			r.Get("/friends/{id}", router.handler.AccountFriend)
		})

		r.Get("/presence", router.handler.PresenceList)
		r.Get("/presence/{id}", router.handler.PresenceOne)
		r.Get("/presence/{id}/events", router.handler.PresenceEvents)
		r.Get("/presence/{id}/ws", router.handler.PresenceWebSocket)
		r.Get("/events", router.handler.AllEvents)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
