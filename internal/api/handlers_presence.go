// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/presencewatch/internal/logging"
	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/stream"
)

// PresenceList returns the merged descriptor of every tracked entity.
func (h *Handler) PresenceList(w http.ResponseWriter, r *http.Request) {
	snaps := h.presence.Snapshots()
	if snaps == nil {
		snaps = []models.EntitySnapshot{}
	}
	respondData(w, snaps, models.Metadata{})
}

// PresenceOne returns the merged descriptor of one entity.
func (h *Handler) PresenceOne(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.presence.Snapshot(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Entity is not tracked", nil)
		return
	}
	respondData(w, snap, models.Metadata{})
}

// PresenceEvents streams one entity's pushes as server-sent events.
func (h *Handler) PresenceEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.presence.Snapshot(id); !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Entity is not tracked", nil)
		return
	}
	h.serveSSE(w, r, id)
}

// AllEvents streams every entity's pushes as server-sent events.
func (h *Handler) AllEvents(w http.ResponseWriter, r *http.Request) {
	h.serveSSE(w, r, stream.TopicAll)
}

func (h *Handler) serveSSE(w http.ResponseWriter, r *http.Request, topic string) {
	sub, snapshot, err := h.hub.Subscribe(topic, stream.TransportSSE)
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Server is shutting down", err)
		return
	}

	// The server write timeout is meant for snapshot endpoints.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		sub.Close()
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Streaming unavailable", err)
		return
	}

	logger := *logging.Ctx(r.Context())
	logger.Debug().Str("topic", topic).Msg("SSE subscriber connected")

	err = stream.ServeSSE(w, r, sub, snapshot, logger)
	if errors.Is(err, stream.ErrStreamingUnsupported) {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Streaming unsupported", err)
	}
}

// PresenceWebSocket streams one entity's pushes over a WebSocket.
func (h *Handler) PresenceWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.presence.Snapshot(id); !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Entity is not tracked", nil)
		return
	}

	// Subscribe before upgrading so a closed hub still gets a proper HTTP
	// error.
	sub, snapshot, err := h.hub.Subscribe(id, stream.TransportWebSocket)
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Server is shutting down", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		sub.Close()
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	stream.ServeWebSocket(conn, sub, snapshot, *logging.Ctx(r.Context()))
}
