// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package upstream talks to the gaming platform and auxiliary game APIs.

Every failure leaving this package is an *Error carrying a Kind:

	Kind           Cause                         Verdict
	auth_expired   HTTP 401                      Retry
	rate_limited   HTTP 429 (Retry-After kept)   Retry
	transport      network, 5xx, open breaker    Retry
	malformed      undecodable response          Stop
	auth_revoked   HTTP 403                      Stop
	contract       other 4xx                     Stop

Classify turns an error into a loop.Verdict. MonitorPolicy tolerates a
bounded run of malformed responses so an enrichment monitor keeps serving
its stale schedule cache through a short upstream glitch.

Client is shared across tenants: the session token is passed per call, while
the rate limiter and circuit breaker protect the upstream service as a whole.
*/
package upstream
