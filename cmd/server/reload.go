// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package main

import (
	"sync"

	"github.com/tomtom215/presencewatch/internal/auth"
	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/logging"
	"github.com/tomtom215/presencewatch/internal/presence"
	"github.com/tomtom215/presencewatch/internal/tenant"
)

// entityApplier converges the tracked set. *presence.Coordinator satisfies it.
type entityApplier interface {
	Apply(specs []presence.EntitySpec) error
}

// reloader applies config file edits to the running server. Only accounts,
// tracked entities and the log level follow the file; listener, upstream and
// sink settings need a restart.
type reloader struct {
	entities entityApplier
	accounts *auth.Accounts
	cache    *tenant.Cache

	mu     sync.Mutex
	tokens map[string]string
}

func newReloader(cfg *config.Config, entities entityApplier, accounts *auth.Accounts, cache *tenant.Cache) *reloader {
	return &reloader{
		entities: entities,
		accounts: accounts,
		cache:    cache,
		tokens:   accountTokens(cfg.Accounts),
	}
}

func accountTokens(accounts []config.AccountConfig) map[string]string {
	tokens := make(map[string]string, len(accounts))
	for _, a := range accounts {
		tokens[a.Key] = a.Token
	}
	return tokens
}

// apply is the config.WatchConfigFile callback. A file that fails to load
// or validate leaves the running configuration in place.
func (r *reloader) apply(cfg *config.Config, err error) {
	if err != nil {
		logging.Warn().Err(err).Msg("Config reload failed, keeping previous configuration")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := accountTokens(cfg.Accounts)
	for key, token := range r.tokens {
		if next[key] != token {
			// Cached values were fetched with a credential that no longer applies.
			r.cache.Invalidate(key)
		}
	}
	r.tokens = next

	r.accounts.Replace(cfg.Accounts)
	logging.SetLevelString(cfg.Logging.Level)

	specs := presence.SpecsFromConfig(cfg)
	if err := r.entities.Apply(specs); err != nil {
		logging.Warn().Err(err).Msg("Some tracked entities did not reload cleanly")
	}
	logging.Info().Int("accounts", len(cfg.Accounts)).Int("entities", len(specs)).Msg("Configuration reloaded")
}
