// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package models

import (
	"time"
)

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"id": "friend-1", "descriptor": {...}},
//	  "metadata": {
//	    "timestamp": "2026-10-16T12:00:00Z",
//	    "query_time_ms": 45,
//	    "cached": true
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "UPSTREAM_RATE_LIMITED",
//	    "message": "Upstream rate limit exceeded"
//	  },
//	  "metadata": {"timestamp": "2026-10-16T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
//
// Fields:
//   - Timestamp: Server time when response was generated (RFC3339 format)
//   - QueryTimeMS: Time spent waiting on the upstream fetch, 0 if served from cache
//   - Cached: Whether response was served from the tenant cache
//   - FetchedAt: When the cached value was fetched from upstream
type Metadata struct {
	Timestamp   time.Time  `json:"timestamp"`
	QueryTimeMS int64      `json:"query_time_ms,omitempty"`
	Cached      bool       `json:"cached,omitempty"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
}

// APIError represents an error response with structured error details.
//
// Common error codes:
//   - AUTHENTICATION_ERROR: Invalid/missing credentials
//   - NOT_FOUND: Unknown account, friend or entity
//   - UPSTREAM_RATE_LIMITED: Upstream answered 429
//   - UPSTREAM_AUTH_ERROR: Upstream rejected the account token
//   - UPSTREAM_ERROR: Any other upstream failure
//   - RATE_LIMIT_EXCEEDED: Too many requests to this server
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the body of the readiness endpoint.
type HealthStatus struct {
	Status   string    `json:"status"`
	Version  string    `json:"version"`
	Entities int       `json:"entities"`
	Online   int       `json:"online"`
	Uptime   float64   `json:"uptime_seconds"`
	CheckAt  time.Time `json:"checked_at"`
}

// EntitySnapshot is the current merged presence of one tracked entity.
type EntitySnapshot struct {
	ID         string              `json:"id"`
	Kind       string              `json:"kind"`
	Name       string              `json:"name,omitempty"`
	Account    string              `json:"account"`
	Online     bool                `json:"online"`
	Descriptor *ActivityDescriptor `json:"descriptor"`
	Presence   *Presence           `json:"presence,omitempty"`
	Monitors   []string            `json:"monitors,omitempty"`
	Seq        uint64              `json:"seq"`
	UpdatedAt  time.Time           `json:"updated_at"`
}
