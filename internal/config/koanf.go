// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/presencewatch/config.yaml",
	"/etc/presencewatch/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8787,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Presence: PresenceConfig{
			UpdateInterval:       30 * time.Second,
			FriendInterval:       30 * time.Second,
			MinInterval:          10 * time.Second,
			RetryBackoff:         "immediate",
			RetryThreshold:       3,
			RetryInitialInterval: time.Second,
			MaxAuthExpired:       5,
		},
		Upstream: UpstreamConfig{
			BaseURL:         "https://api-lp1.znc.srv.nintendo.net",
			ScheduleURL:     "https://splatoon3.ink",
			Timeout:         10 * time.Second,
			UserAgent:       "presencewatch",
			RateLimit:       2,
			RateBurst:       4,
			BreakerRequests: 10,
			BreakerRatio:    0.6,
			BreakerTimeout:  time.Minute,
		},
		Monitors: MonitorsConfig{
			MaxMalformed: 3,
			Splatoon3: Splatoon3Config{
				Enabled:  false,
				Versus:   true,
				Coop:     true,
				Fest:     true,
				Interval: time.Minute,
				TitleID:  "0100c2500fc20000",
				Locale:   "en-US",
			},
		},
		API: APIConfig{
			AllowAccountKeyQuery: false,
			SessionTTL:           24 * time.Hour,
			CORSOrigins:          []string{"*"},
			RateLimitReqs:        100,
			RateLimitWindow:      time.Minute,
			StreamBuffer:         64,
			HeartbeatInterval:    30 * time.Second,
		},
		Cache: CacheConfig{
			MinRefetchInterval: 10 * time.Second,
			FetchTimeout:       15 * time.Second,
		},
		Sinks: SinksConfig{
			Log:              true,
			WebhookRateLimit: 30,
			WebhookTimeout:   10 * time.Second,
			RedisTTL:         5 * time.Minute,
			RedisPrefix:      "presence:",
			QueueSize:        256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Accounts can only be declared in the config file; environment variables
// override scalar settings.
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

// load runs the layered load against an explicit config file path. An empty
// path skips the file layer.
func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// HTTP_PORT -> server.port
	// PRESENCE_UPDATE_INTERVAL -> presence.update_interval
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Presence mappings
	"presence_update_interval":        "presence.update_interval",
	"presence_friend_interval":        "presence.friend_interval",
	"presence_min_interval":           "presence.min_interval",
	"presence_retry_backoff":          "presence.retry_backoff",
	"presence_retry_threshold":        "presence.retry_threshold",
	"presence_retry_initial_interval": "presence.retry_initial_interval",
	"presence_max_auth_expired":       "presence.max_auth_expired",

	// Upstream mappings
	"upstream_base_url":              "upstream.base_url",
	"upstream_schedule_url":          "upstream.schedule_url",
	"upstream_timeout":               "upstream.timeout",
	"upstream_user_agent":            "upstream.user_agent",
	"upstream_rate_limit":            "upstream.rate_limit",
	"upstream_rate_burst":            "upstream.rate_burst",
	"upstream_breaker_min_requests":  "upstream.breaker_min_requests",
	"upstream_breaker_failure_ratio": "upstream.breaker_failure_ratio",
	"upstream_breaker_timeout":       "upstream.breaker_timeout",

	// Monitor mappings
	"monitors_max_malformed": "monitors.max_malformed",
	"enable_splatoon3":       "monitors.splatoon3.enabled",
	"splatoon3_versus":       "monitors.splatoon3.versus",
	"splatoon3_coop":         "monitors.splatoon3.coop",
	"splatoon3_fest":         "monitors.splatoon3.fest",
	"splatoon3_interval":     "monitors.splatoon3.interval",
	"splatoon3_title_id":     "monitors.splatoon3.title_id",
	"splatoon3_locale":       "monitors.splatoon3.locale",

	// API mappings
	"api_allow_account_key_query": "api.allow_account_key_query",
	"session_secret":              "api.session_secret",
	"session_ttl":                 "api.session_ttl",
	"cors_origins":                "api.cors_origins",
	"rate_limit_requests":         "api.rate_limit_reqs",
	"rate_limit_window":           "api.rate_limit_window",
	"disable_rate_limit":          "api.rate_limit_disabled",
	"stream_buffer":               "api.stream_buffer",
	"stream_heartbeat":            "api.heartbeat_interval",
	"cache_min_refetch":           "cache.min_refetch_interval",
	"cache_fetch_timeout":         "cache.fetch_timeout",
	"sink_log":                    "sinks.log",
	"sink_webhook_url":            "sinks.webhook_url",
	"sink_webhook_rate":           "sinks.webhook_rate_limit",
	"sink_webhook_timeout":        "sinks.webhook_timeout",
	"sink_redis_addr":             "sinks.redis_addr",
	"sink_redis_password":         "sinks.redis_password",
	"sink_redis_db":               "sinks.redis_db",
	"sink_redis_ttl":              "sinks.redis_ttl",
	"sink_redis_prefix":           "sinks.redis_prefix",
	"sink_queue_size":             "sinks.queue_size",
	"log_level":                   "logging.level",
	"log_format":                  "logging.format",
	"log_caller":                  "logging.caller",
	"supervisor_threshold":        "supervisor.failure_threshold",
	"supervisor_decay":            "supervisor.failure_decay",
	"supervisor_backoff":          "supervisor.failure_backoff",
	"supervisor_shutdown":         "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unknown variables map to "" and are ignored, so the process environment
// cannot inject arbitrary keys.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - PRESENCE_UPDATE_INTERVAL -> presence.update_interval
//   - ENABLE_SPLATOON3 -> monitors.splatoon3.enabled
//   - SINK_REDIS_ADDR -> sinks.redis_addr
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

// ConfigFile returns the config file LoadWithKoanf would read, or "".
func ConfigFile() string {
	return findConfigFile()
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The callback receives the freshly loaded configuration; reload failures
// are passed as err and the previous configuration stays in effect.
func WatchConfigFile(path string, callback func(cfg *Config, err error)) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		callback(load(path))
	})
}
