// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/metrics"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Client is a rate-limited, circuit-broken JSON client for one upstream
// service. A session token is passed per call so one Client serves every
// tenant.
//
// Request pipeline:
//  1. Wait out any Retry-After window from a previous 429
//  2. Wait for the token bucket (golang.org/x/time/rate)
//  3. Execute through the circuit breaker (sony/gobreaker)
//  4. Map the HTTP status to a typed *Error
//  5. Decode the body outside the breaker; decode failures are KindMalformed
//
// Only transport failures count against the breaker. Auth, contract and rate
// limit answers prove the service is up.
type Client struct {
	name       string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewClient creates a client named name (used as the breaker and log label)
// for baseURL with the limits from cfg.
func NewClient(name, baseURL string, cfg *config.UpstreamConfig, logger zerolog.Logger) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:     logger.With().Str("upstream", name).Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	minRequests := cfg.BreakerRequests
	ratio := cfg.BreakerRatio
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || KindOf(err) != KindTransport
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			c.logger.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return c
}

// Name returns the client's label.
func (c *Client) Name() string {
	return c.name
}

// Get issues GET path with an optional bearer token and decodes the JSON
// response into out. op labels the call in errors and metrics.
func (c *Client) Get(ctx context.Context, op, path, token string, out any) error {
	start := time.Now()
	err := c.get(ctx, op, path, token, out)
	metrics.RecordUpstreamRequest(op, time.Since(start), string(KindOf(err)))
	return err
}

func (c *Client) get(ctx context.Context, op, path, token string, out any) error {
	if err := c.waitRetryAfter(ctx); err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, op, path, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			return &Error{Kind: KindTransport, Op: op, Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do executes one request and maps its status to a typed error.
func (c *Client) do(ctx context.Context, op, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, &Error{Kind: KindContract, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	ue := &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		ue.Kind = KindAuthExpired
	case resp.StatusCode == http.StatusForbidden:
		ue.Kind = KindAuthRevoked
	case resp.StatusCode == http.StatusTooManyRequests:
		ue.Kind = KindRateLimited
		ue.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		c.blockFor(ue.RetryAfter)
		c.logger.Warn().Str("op", op).Dur("retry_after", ue.RetryAfter).Msg("Upstream rate limited (HTTP 429)")
	case resp.StatusCode >= 500:
		ue.Kind = KindTransport
	default:
		ue.Kind = KindContract
	}
	return nil, ue
}

// blockFor holds back every request of this client for d.
func (c *Client) blockFor(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	c.mu.Lock()
	if until.After(c.blockedUntil) {
		c.blockedUntil = until
	}
	c.mu.Unlock()
}

// waitRetryAfter sleeps until a Retry-After window has passed.
func (c *Client) waitRetryAfter(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.blockedUntil)
	c.mu.Unlock()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter parses a Retry-After header given as delay-seconds or as
// an HTTP date (RFC 9110). Unparseable values yield 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
