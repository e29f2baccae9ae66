// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Tracking:
//     - Presence: Poll intervals and retry escalation
//     - Accounts: Tracked accounts, their friends and monitors
//     - Monitors: Per-monitor enable flags
//
//  2. Upstream:
//     - Upstream: Platform API base URL, timeouts, rate limit, circuit breaker
//
//  3. Distribution:
//     - Server: HTTP listener
//     - API: Authentication, CORS, rate limiting, streaming
//     - Cache: Tenant cache refetch interval
//     - Sinks: Log, webhook and Redis outputs
//
//  4. Runtime:
//     - Logging, Supervisor
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Presence   PresenceConfig   `koanf:"presence"`
	Upstream   UpstreamConfig   `koanf:"upstream"`
	Monitors   MonitorsConfig   `koanf:"monitors"`
	Accounts   []AccountConfig  `koanf:"accounts" validate:"dive"`
	API        APIConfig        `koanf:"api"`
	Cache      CacheConfig      `koanf:"cache"`
	Sinks      SinksConfig      `koanf:"sinks"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Host        string        `koanf:"host"`
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout applies to snapshot endpoints only. Streaming endpoints
	// clear their write deadline.
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// PresenceConfig holds polling defaults for tracked entities.
type PresenceConfig struct {
	// UpdateInterval is the default poll interval for accounts.
	UpdateInterval time.Duration `koanf:"update_interval"`

	// FriendInterval is the default poll interval for friends.
	FriendInterval time.Duration `koanf:"friend_interval"`

	// MinInterval is the floor applied to every configured interval.
	MinInterval time.Duration `koanf:"min_interval"`

	// RetryBackoff selects how repeated Retry verdicts are spaced:
	// "immediate" (default) or "exponential".
	RetryBackoff string `koanf:"retry_backoff" validate:"oneof=immediate exponential"`

	// RetryThreshold is the number of consecutive failures retried at once
	// before exponential backoff kicks in.
	RetryThreshold int `koanf:"retry_threshold" validate:"min=0"`

	// RetryInitialInterval is the first exponential backoff delay.
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`

	// MaxAuthExpired is how many consecutive expired-session responses an
	// account or friend loop tolerates before it stops. 0 disables the limit.
	MaxAuthExpired int `koanf:"max_auth_expired" validate:"min=0"`
}

// UpstreamConfig holds gaming platform API settings.
type UpstreamConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required"`
	ScheduleURL     string        `koanf:"schedule_url"`
	Timeout         time.Duration `koanf:"timeout"`
	UserAgent       string        `koanf:"user_agent"`
	RateLimit       float64       `koanf:"rate_limit" validate:"gt=0"`
	RateBurst       int           `koanf:"rate_burst" validate:"min=1"`
	BreakerRequests uint32        `koanf:"breaker_min_requests"`
	BreakerRatio    float64       `koanf:"breaker_failure_ratio" validate:"gte=0,lte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// MonitorsConfig holds global monitor settings.
type MonitorsConfig struct {
	// MaxMalformed is the number of consecutive malformed responses a
	// monitor tolerates before it stops.
	MaxMalformed int             `koanf:"max_malformed" validate:"min=0"`
	Splatoon3    Splatoon3Config `koanf:"splatoon3"`
}

// Splatoon3Config enables the Splatoon 3 schedule monitors.
type Splatoon3Config struct {
	Enabled  bool          `koanf:"enabled"`
	Versus   bool          `koanf:"versus"`
	Coop     bool          `koanf:"coop"`
	Fest     bool          `koanf:"fest"`
	Interval time.Duration `koanf:"interval"`
	TitleID  string        `koanf:"title_id"`
	Locale   string        `koanf:"locale"`
}

// AccountConfig describes one tracked account.
type AccountConfig struct {
	// Key is the tenant key used in HTTP routes and ?account= queries.
	Key string `koanf:"key" validate:"required,entitykey"`

	// Token is the upstream session token for this account.
	Token string `koanf:"token" validate:"required"`

	// Track enables presence tracking for the account itself.
	Track bool `koanf:"track"`

	// Interval overrides presence.update_interval.
	Interval time.Duration `koanf:"interval"`

	// Monitors lists monitor kinds for the account entity.
	Monitors []string `koanf:"monitors" validate:"dive,monitorkind"`

	// Friends lists friends tracked through this account.
	Friends []FriendConfig `koanf:"friends" validate:"dive"`
}

// FriendConfig describes one tracked friend.
type FriendConfig struct {
	ID       string        `koanf:"id" validate:"required,entitykey"`
	Interval time.Duration `koanf:"interval"`
	Monitors []string      `koanf:"monitors" validate:"dive,monitorkind"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	// AllowAccountKeyQuery accepts ?account=<key> for configured accounts
	// in place of a bearer session token.
	AllowAccountKeyQuery bool `koanf:"allow_account_key_query"`

	// SessionSecret signs bearer session tokens (HS256).
	SessionSecret string `koanf:"session_secret"`

	// SessionTTL is the lifetime of issued session tokens.
	SessionTTL time.Duration `koanf:"session_ttl"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// StreamBuffer is the per-subscriber event buffer. A subscriber whose
	// buffer fills up is disconnected.
	StreamBuffer int `koanf:"stream_buffer" validate:"min=1"`

	// HeartbeatInterval is the SSE comment / WebSocket ping period.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// CacheConfig holds tenant cache settings.
type CacheConfig struct {
	// MinRefetchInterval is the age below which cached values are served
	// without contacting upstream.
	MinRefetchInterval time.Duration `koanf:"min_refetch_interval"`

	// FetchTimeout bounds a shared upstream fetch, independent of the
	// callers waiting on it.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// SinksConfig holds output sink settings.
type SinksConfig struct {
	Log              bool          `koanf:"log"`
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookRateLimit int           `koanf:"webhook_rate_limit" validate:"min=0"`
	WebhookTimeout   time.Duration `koanf:"webhook_timeout"`
	RedisAddr        string        `koanf:"redis_addr"`
	RedisPassword    string        `koanf:"redis_password"`
	RedisDB          int           `koanf:"redis_db" validate:"min=0"`
	RedisTTL         time.Duration `koanf:"redis_ttl"`
	RedisPrefix      string        `koanf:"redis_prefix"`
	QueueSize        int           `koanf:"queue_size" validate:"min=1"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Splatoon3MonitorKinds returns the enabled Splatoon 3 monitor kinds.
func (c *Config) Splatoon3MonitorKinds() []string {
	s := c.Monitors.Splatoon3
	if !s.Enabled {
		return nil
	}
	var kinds []string
	if s.Versus {
		kinds = append(kinds, "splatoon3.versus")
	}
	if s.Coop {
		kinds = append(kinds, "splatoon3.coop")
	}
	if s.Fest {
		kinds = append(kinds, "splatoon3.fest")
	}
	return kinds
}

// AccountKeys returns the configured account keys in order.
func (c *Config) AccountKeys() []string {
	keys := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		keys[i] = c.Accounts[i].Key
	}
	return keys
}

// ClampInterval applies the configured floor and default to an interval.
func (c *PresenceConfig) ClampInterval(d, def time.Duration) time.Duration {
	if d <= 0 {
		d = def
	}
	if d < c.MinInterval {
		d = c.MinInterval
	}
	return d
}
