// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package tenant provides the per-account cache that sits in front of every
upstream fetch.

Entries are keyed by (account key, resource). A fresh entry, younger than the
minimum refetch interval, is served without I/O. A stale or missing entry is
refreshed through golang.org/x/sync/singleflight, so at most one upstream
fetch is in flight per key and concurrent callers share its result or its
failure. Failures are never cached.

The shared fetch runs on a context detached from the caller that started it,
bounded by the configured fetch timeout. A caller that gives up returns early
with its own context error without affecting the other waiters.

Usage:

	user, res, err := tenant.Get(ctx, cache, tenant.Key{Account: "main", Resource: tenant.ResourceUser},
		func(ctx context.Context) (*models.Account, error) {
			return source.CurrentUser(ctx, token)
		})
*/
package tenant
