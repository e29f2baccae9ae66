// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package stream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/metrics"
)

// EventName is the SSE event type of presence events.
const EventName = "presence"

// HeartbeatInterval is how often an idle stream sends a comment line.
var HeartbeatInterval = 30 * time.Second

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// ServeSSE streams sub to w as server-sent events until the client goes
// away or the subscriber is disconnected. snapshot is written first. The
// caller owns sub; ServeSSE closes it on return.
func ServeSSE(w http.ResponseWriter, r *http.Request, sub *Subscriber, snapshot []Event, logger zerolog.Logger) error {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, e := range snapshot {
		if err := writeSSE(w, e); err != nil {
			return err
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				err := sub.Err()
				logger.Debug().Err(err).Str("topic", sub.Topic()).Msg("SSE subscriber disconnected")
				fmt.Fprintf(w, "event: close\ndata: %q\n\n", err.Error())
				flusher.Flush()
				return err
			}
			if err := writeSSE(w, e); err != nil {
				return err
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %s:%d\nevent: %s\ndata: %s\n\n", e.EntityID, e.Seq, EventName, payload); err != nil {
		return err
	}
	metrics.StreamEventsSent.Inc()
	return nil
}
