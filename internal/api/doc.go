// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package api provides the HTTP surface of presencewatch.

Routes (all JSON unless noted):

	GET /api/v1/health/live                    liveness, unauthenticated
	GET /api/v1/health/ready                   503 until every poll loop started
	GET /api/v1/accounts/{key}/user            account's own user record
	GET /api/v1/accounts/{key}/friends         account's friend list
	GET /api/v1/accounts/{key}/friends/{id}    one friend
	GET /api/v1/presence                       merged descriptor of every entity
	GET /api/v1/presence/{id}                  merged descriptor of one entity
	GET /api/v1/presence/{id}/events           text/event-stream of one entity
	GET /api/v1/presence/{id}/ws               WebSocket stream of one entity
	GET /api/v1/events                         text/event-stream of every entity
	GET /metrics                               Prometheus exposition

Account routes read through the tenant cache, so concurrent API reads and the
presence poll loops share a single upstream fetch per account and resource.
Upstream failures map to 429 (with Retry-After), 401 for rejected account
tokens, and 502 otherwise. Failed fetches are never cached.

Every response uses the models.APIResponse envelope and carries
Cache-Control: no-store.
*/
package api
