// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/models"
)

// HealthLive reports that the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, models.Metadata{})
}

// HealthReady reports 503 until every poll loop has started. Loops that
// stopped or were disabled count as settled; their entities show offline.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	states := h.presence.LoopStates()
	tracked, online := h.presence.Counts()

	loops := make(map[string]string, len(states))
	pending := 0
	for name, s := range states {
		loops[name] = s.String()
		if s == loop.Pending {
			pending++
		}
	}

	status := "ready"
	code := http.StatusOK
	if pending > 0 {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"health": models.HealthStatus{
				Status:   status,
				Version:  h.version,
				Entities: tracked,
				Online:   online,
				Uptime:   time.Since(h.startTime).Seconds(),
				CheckAt:  time.Now(),
			},
			"loops":       loops,
			"subscribers": h.subscriberCount(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

func (h *Handler) subscriberCount() int {
	if h.hub == nil {
		return 0
	}
	return h.hub.SubscriberCount()
}
