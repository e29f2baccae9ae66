// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/presencewatch/internal/validation"
)

// knownMonitorKinds lists the monitor kinds accounts and friends may reference.
var knownMonitorKinds = map[string]bool{
	"splatoon3.versus": true,
	"splatoon3.coop":   true,
	"splatoon3.fest":   true,
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// minSessionSecretLength is the minimum HS256 key length in bytes.
const minSessionSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validatePresence(); err != nil {
		return err
	}

	if err := c.validateUpstream(); err != nil {
		return err
	}

	if err := c.validateAccounts(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	if err := c.validateSinks(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validatePresence checks intervals. Every interval must be at least the
// configured floor, which itself must be positive.
func (c *Config) validatePresence() error {
	p := c.Presence
	if p.MinInterval <= 0 {
		return fmt.Errorf("PRESENCE_MIN_INTERVAL must be positive")
	}
	if p.UpdateInterval < p.MinInterval {
		return fmt.Errorf("PRESENCE_UPDATE_INTERVAL (%s) must be at least PRESENCE_MIN_INTERVAL (%s)", p.UpdateInterval, p.MinInterval)
	}
	if p.FriendInterval < p.MinInterval {
		return fmt.Errorf("PRESENCE_FRIEND_INTERVAL (%s) must be at least PRESENCE_MIN_INTERVAL (%s)", p.FriendInterval, p.MinInterval)
	}
	if p.RetryBackoff == "exponential" && p.RetryInitialInterval <= 0 {
		return fmt.Errorf("PRESENCE_RETRY_INITIAL_INTERVAL must be positive when PRESENCE_RETRY_BACKOFF=exponential")
	}
	if c.Monitors.Splatoon3.Enabled && c.Monitors.Splatoon3.Interval < p.MinInterval {
		return fmt.Errorf("SPLATOON3_INTERVAL (%s) must be at least PRESENCE_MIN_INTERVAL (%s)", c.Monitors.Splatoon3.Interval, p.MinInterval)
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if err := validateHTTPURL(c.Upstream.BaseURL, "UPSTREAM_BASE_URL"); err != nil {
		return err
	}
	if c.Monitors.Splatoon3.Enabled {
		if c.Upstream.ScheduleURL == "" {
			return fmt.Errorf("UPSTREAM_SCHEDULE_URL is required when ENABLE_SPLATOON3=true")
		}
		if err := validateHTTPURL(c.Upstream.ScheduleURL, "UPSTREAM_SCHEDULE_URL"); err != nil {
			return err
		}
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

// validateAccounts checks that account keys and tracked entity IDs are
// unique and that every referenced monitor is known and enabled.
func (c *Config) validateAccounts() error {
	keys := make(map[string]bool, len(c.Accounts))
	friends := make(map[string]string)
	enabled := make(map[string]bool)
	for _, kind := range c.Splatoon3MonitorKinds() {
		enabled[kind] = true
	}

	checkMonitors := func(owner string, kinds []string) error {
		seen := make(map[string]bool, len(kinds))
		for _, kind := range kinds {
			if !knownMonitorKinds[kind] {
				return fmt.Errorf("%s: unknown monitor kind %q", owner, kind)
			}
			if !enabled[kind] {
				return fmt.Errorf("%s: monitor %q is not enabled", owner, kind)
			}
			if seen[kind] {
				return fmt.Errorf("%s: monitor %q listed twice", owner, kind)
			}
			seen[kind] = true
		}
		return nil
	}

	for i := range c.Accounts {
		acct := &c.Accounts[i]
		if keys[acct.Key] {
			return fmt.Errorf("accounts[%d]: duplicate account key %q", i, acct.Key)
		}
		keys[acct.Key] = true

		if acct.Interval != 0 && acct.Interval < c.Presence.MinInterval {
			return fmt.Errorf("account %q: interval %s is below the minimum %s", acct.Key, acct.Interval, c.Presence.MinInterval)
		}
		if err := checkMonitors("account "+acct.Key, acct.Monitors); err != nil {
			return err
		}

		for _, f := range acct.Friends {
			if owner, dup := friends[f.ID]; dup {
				return fmt.Errorf("friend %q is tracked by both %q and %q", f.ID, owner, acct.Key)
			}
			friends[f.ID] = acct.Key

			if f.Interval != 0 && f.Interval < c.Presence.MinInterval {
				return fmt.Errorf("friend %q: interval %s is below the minimum %s", f.ID, f.Interval, c.Presence.MinInterval)
			}
			if err := checkMonitors("friend "+f.ID, f.Monitors); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.SessionSecret != "" && len(c.API.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}
	if c.API.SessionSecret != "" && c.API.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if !c.API.RateLimitDisabled {
		if c.API.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.API.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	if c.API.HeartbeatInterval <= 0 {
		return fmt.Errorf("STREAM_HEARTBEAT must be positive")
	}
	return nil
}

func (c *Config) validateSinks() error {
	if c.Sinks.WebhookURL != "" {
		if err := validateHTTPURL(c.Sinks.WebhookURL, "SINK_WEBHOOK_URL"); err != nil {
			return err
		}
	}
	if c.Sinks.RedisAddr != "" && c.Sinks.RedisTTL <= 0 {
		return fmt.Errorf("SINK_REDIS_TTL must be positive when SINK_REDIS_ADDR is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if err := c.validateLogLevel(); err != nil {
		return err
	}
	return c.validateLogFormat()
}

func (c *Config) validateLogLevel() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	return nil
}

func (c *Config) validateLogFormat() error {
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// HasWildcardCORS reports whether any origin is allowed.
func (c *Config) HasWildcardCORS() bool {
	for _, origin := range c.API.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// AllowsAnonymousAPI reports whether the API has no authentication method.
// Snapshot and stream endpoints then reject every request.
func (c *Config) AllowsAnonymousAPI() bool {
	return c.API.SessionSecret == "" && !c.API.AllowAccountKeyQuery
}
