// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/presencewatch/internal/loop"
)

// Kind classifies upstream failures.
type Kind string

const (
	// KindAuthExpired means the session token expired and a refresh may fix it.
	KindAuthExpired Kind = "auth_expired"
	// KindRateLimited means upstream answered 429.
	KindRateLimited Kind = "rate_limited"
	// KindTransport covers network failures, timeouts, 5xx and an open breaker.
	KindTransport Kind = "transport"
	// KindMalformed means the response could not be decoded.
	KindMalformed Kind = "malformed"
	// KindAuthRevoked means the credential was rejected for good.
	KindAuthRevoked Kind = "auth_revoked"
	// KindContract means upstream rejected the request shape (unexpected 4xx).
	KindContract Kind = "contract"
)

// Transient reports whether the kind is expected to clear up on its own.
func (k Kind) Transient() bool {
	switch k {
	case KindAuthExpired, KindRateLimited, KindTransport:
		return true
	default:
		return false
	}
}

// Error is a classified upstream failure.
type Error struct {
	Kind       Kind
	Op         string
	Status     int
	RetryAfter time.Duration
	Err        error
}

// Error implements error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("upstream %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an upstream error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// IsTransient reports whether err is worth retrying immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if kind := KindOf(err); kind != "" {
		return kind.Transient()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Classify maps an error to a loop verdict. Permanent failures stop the
// loop. Everything else, including errors that carry no upstream kind, is
// retried.
func Classify(err error) loop.Verdict {
	switch KindOf(err) {
	case KindAuthRevoked, KindContract, KindMalformed:
		return loop.Stop
	default:
		return loop.Retry
	}
}

// BasePolicy is the policy for account and friend loops. Nothing refreshes a
// configured session token, so auth_expired responses are retried only up
// to a limit of consecutive occurrences.
type BasePolicy struct {
	maxAuthExpired int

	mu          sync.Mutex
	authExpired int
}

// NewBasePolicy creates a policy that stops after maxAuthExpired
// consecutive auth_expired responses. A limit of 0 retries them forever.
func NewBasePolicy(maxAuthExpired int) *BasePolicy {
	return &BasePolicy{maxAuthExpired: maxAuthExpired}
}

// Classify implements loop.Policy.
func (p *BasePolicy) Classify(err error) loop.Verdict {
	if p.maxAuthExpired <= 0 || KindOf(err) != KindAuthExpired {
		return Classify(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.authExpired++
	if p.authExpired > p.maxAuthExpired {
		return loop.Stop
	}
	return loop.Retry
}

// Reset implements loop.Resetter.
func (p *BasePolicy) Reset() {
	p.mu.Lock()
	p.authExpired = 0
	p.mu.Unlock()
}

// MonitorPolicy is the policy for enrichment monitors. Malformed schedule
// responses are tolerated up to a limit of consecutive occurrences while the
// monitor keeps serving its stale cache.
type MonitorPolicy struct {
	maxMalformed int

	mu        sync.Mutex
	malformed int
}

// NewMonitorPolicy creates a policy that stops after maxMalformed consecutive
// malformed responses. A limit of 0 stops on the first one.
func NewMonitorPolicy(maxMalformed int) *MonitorPolicy {
	return &MonitorPolicy{maxMalformed: maxMalformed}
}

// Classify implements loop.Policy.
func (p *MonitorPolicy) Classify(err error) loop.Verdict {
	if KindOf(err) != KindMalformed {
		return Classify(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.malformed++
	if p.malformed > p.maxMalformed {
		return loop.Stop
	}
	return loop.Retry
}

// Reset implements loop.Resetter.
func (p *MonitorPolicy) Reset() {
	p.mu.Lock()
	p.malformed = 0
	p.mu.Unlock()
}
