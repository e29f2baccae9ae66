// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/presencewatch/internal/logging"
	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// Error codes used in the response envelope.
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeUpstreamRateLimited = "UPSTREAM_RATE_LIMITED"
	ErrCodeUpstreamAuth        = "UPSTREAM_AUTH_ERROR"
	ErrCodeUpstream            = "UPSTREAM_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeUnavailable         = "SERVICE_UNAVAILABLE"
)

// sanitizeLogValue escapes control characters so client-supplied values
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// respondJSON writes response with status. Presence changes continuously, so
// nothing is cacheable by intermediaries.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData writes a success envelope.
func respondData(w http.ResponseWriter, data interface{}, meta models.Metadata) {
	meta.Timestamp = time.Now()
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: meta,
	})
}

// respondError writes an error envelope. err, if set, is logged and never
// sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Warn().
			Str("code", code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	var details map[string]interface{}
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		details = map[string]interface{}{"request_id": id}
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// authError adapts respondError to auth.ErrorFunc.
func authError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondError(w, r, status, code, message, nil)
}

// respondUpstreamError maps a failed upstream fetch to a status: 429 stays
// 429, token problems become 401 and everything else is 502.
func respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var uerr *upstream.Error
	if !errors.As(err, &uerr) {
		if r.Context().Err() != nil {
			return
		}
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstream, "Upstream request failed", err)
		return
	}

	switch uerr.Kind {
	case upstream.KindRateLimited:
		if uerr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int((uerr.RetryAfter+time.Second-1)/time.Second)))
		}
		respondError(w, r, http.StatusTooManyRequests, ErrCodeUpstreamRateLimited, "Upstream rate limit exceeded", err)
	case upstream.KindAuthExpired, upstream.KindAuthRevoked:
		respondError(w, r, http.StatusUnauthorized, ErrCodeUpstreamAuth, "Upstream rejected the account token", err)
	default:
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstream, "Upstream request failed", err)
	}
}

// cacheMeta describes how a tenant cache result was served.
func cacheMeta(res tenant.Result, started time.Time) models.Metadata {
	meta := models.Metadata{Cached: res.Cached}
	if !res.FetchedAt.IsZero() {
		fetched := res.FetchedAt
		meta.FetchedAt = &fetched
	}
	if !res.Cached {
		meta.QueryTimeMS = time.Since(started).Milliseconds()
	}
	return meta
}
