// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package config provides centralized configuration management for Presencewatch.

Configuration is layered with Koanf v2: struct defaults, then an optional YAML
file (CONFIG_PATH or config.yaml), then environment variables. The result is
validated with go-playground/validator tags plus explicit cross-field checks.

# Example config.yaml

	presence:
	  update_interval: 30s
	  friend_interval: 60s
	monitors:
	  splatoon3:
	    enabled: true
	accounts:
	  - key: main
	    token: ${SESSION_TOKEN}
	    track: true
	    monitors: [splatoon3.versus, splatoon3.coop]
	    friends:
	      - id: 0123456789abcdef
	        monitors: [splatoon3.versus]
	api:
	  allow_account_key_query: false
	  session_secret: change-me-to-at-least-32-characters

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT (default: 8787)

Presence:
  - PRESENCE_UPDATE_INTERVAL (default: 30s)
  - PRESENCE_FRIEND_INTERVAL (default: 30s)
  - PRESENCE_MIN_INTERVAL (default: 10s)
  - PRESENCE_RETRY_BACKOFF: immediate or exponential (default: immediate)

Monitors:
  - ENABLE_SPLATOON3, SPLATOON3_VERSUS, SPLATOON3_COOP, SPLATOON3_FEST

API:
  - API_ALLOW_ACCOUNT_KEY_QUERY (default: false)
  - SESSION_SECRET, SESSION_TTL
  - CORS_ORIGINS (comma-separated)

Accounts are only read from the config file.

# Hot Reload

WatchConfigFile reloads the file on change. The server applies account and
monitor changes to running loops in place where the change is equivalent, and
recreates them otherwise.
*/
package config
