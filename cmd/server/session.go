// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/presencewatch/internal/auth"
	"github.com/tomtom215/presencewatch/internal/config"
)

var (
	errSessionsDisabled = errors.New("api.session_secret is not set")
	errUnknownAccount   = errors.New("account is not configured")
)

// newSessionManager returns nil when no session secret is configured.
func newSessionManager(cfg config.APIConfig) (*auth.SessionManager, error) {
	if cfg.SessionSecret == "" {
		return nil, nil
	}
	return auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
}

// issueSession writes a session token for accountKey to w.
func issueSession(w io.Writer, cfg *config.Config, accountKey string) error {
	sessions, err := newSessionManager(cfg.API)
	if err != nil {
		return err
	}
	if sessions == nil {
		return errSessionsDisabled
	}
	if !auth.NewAccounts(cfg.Accounts).Has(accountKey) {
		return fmt.Errorf("%w: %q", errUnknownAccount, accountKey)
	}

	token, expires, err := sessions.Issue(accountKey)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n# expires %s\n", token, expires.UTC().Format(time.RFC3339))
	return err
}
