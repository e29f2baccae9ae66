// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package auth authenticates HTTP API callers.

Presencewatch does not run a login flow. Callers present one of:

  - a bearer session token (HS256 JWT, subject = account key) issued by
    SessionManager.Issue, normally via `presencewatch -issue-session <key>`
  - the key of a configured account as ?account=<key>, only when
    api.allow_account_key_query is enabled

Authenticate stores a Principal in the request context. RequireAccount
then limits account-scoped routes to the principal's own account key.

Accounts is the key to upstream token registry shared by the middleware and
the account snapshot handlers. main replaces it when the config file is
reloaded, so removed accounts stop authenticating immediately.
*/
package auth
