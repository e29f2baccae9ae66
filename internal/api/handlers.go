// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/auth"
	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/stream"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// PresenceView is the read side of the presence coordinator.
type PresenceView interface {
	Snapshot(id string) (models.EntitySnapshot, bool)
	Snapshots() []models.EntitySnapshot
	Counts() (tracked, online int)
	LoopStates() map[string]loop.State
}

// Options holds the handler's collaborators.
type Options struct {
	Presence PresenceView
	Hub      *stream.Hub
	Cache    *tenant.Cache
	Source   upstream.PresenceSource
	Accounts *auth.Accounts
	Config   config.APIConfig
	Version  string
	Logger   zerolog.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	presence  PresenceView
	hub       *stream.Hub
	cache     *tenant.Cache
	source    upstream.PresenceSource
	accounts  *auth.Accounts
	config    config.APIConfig
	version   string
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	if opts.Accounts == nil {
		opts.Accounts = auth.NewAccounts(nil)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	h := &Handler{
		presence:  opts.Presence,
		hub:       opts.Hub,
		cache:     opts.Cache,
		source:    opts.Source,
		accounts:  opts.Accounts,
		config:    opts.Config,
		version:   opts.Version,
		logger:    opts.Logger,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkWebSocketOrigin accepts requests without an Origin header, which only
// non-browser clients send, and browser origins allowed by the CORS list or
// matching the request host.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	h.logger.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
