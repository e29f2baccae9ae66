// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package main is the entry point for the presencewatch server.

Presencewatch polls a gaming platform for the presence of configured
accounts and their friends, enriches it with game schedule monitors, and
distributes the merged activity to sinks (log, webhook, Redis mirror) and to
HTTP clients (snapshots, server-sent events, WebSocket).

# Application Architecture

The server runs under a Suture v4 supervision tree:

	RootSupervisor ("presencewatch")
	├── PresenceSupervisor ("presence-layer")
	│   └── one loop per tracked entity and enabled monitor (added at runtime)
	├── DistributionSupervisor ("distribution-layer")
	│   ├── Stream hub (SSE and WebSocket subscribers)
	│   ├── Sink dispatcher
	│   └── Redis mirror TTL refresh (when sinks.redis_addr is set)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Upstream clients: rate limited, circuit breaker protected
 4. Tenant cache and monitor registry
 5. Sinks, stream hub and presence coordinator
 6. Authentication: session tokens and account keys
 7. HTTP Server: Chi router with middleware stack
 8. Config file watcher: tracked entities follow edits without restart

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Accounts and friends can only be declared in the config file
(config.yaml, or the path in CONFIG_PATH). Core environment variables:

	HTTP_PORT=8787
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	SESSION_SECRET=<32+ chars>   # enables bearer session tokens
	API_ALLOW_ACCOUNT_KEY_QUERY=false
	ENABLE_SPLATOON3=false
	SINK_WEBHOOK_URL=
	SINK_REDIS_ADDR=

# Sessions

Session tokens are issued out of band for a configured account:

	presencewatch -issue-session alice

The token is printed to stdout and is accepted as a bearer token or in the
"session" cookie until it expires (api.session_ttl).

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Disconnects stream subscribers
 3. Stops every poll loop
 4. Reports any services that failed to stop
*/
package main
