// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package auth

import (
	"slices"
	"sync"

	"github.com/tomtom215/presencewatch/internal/config"
)

// Accounts maps configured account keys to their upstream session tokens.
// It is replaced wholesale when the configuration file changes.
type Accounts struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewAccounts builds the registry from the accounts section.
func NewAccounts(accounts []config.AccountConfig) *Accounts {
	a := &Accounts{}
	a.Replace(accounts)
	return a
}

// Replace swaps in a new account set.
func (a *Accounts) Replace(accounts []config.AccountConfig) {
	tokens := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		tokens[acc.Key] = acc.Token
	}
	a.mu.Lock()
	a.tokens = tokens
	a.mu.Unlock()
}

// Token returns the upstream token for key.
func (a *Accounts) Token(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tokens[key]
	return t, ok
}

// Has reports whether key is a configured account.
func (a *Accounts) Has(key string) bool {
	_, ok := a.Token(key)
	return ok
}

// Keys returns the configured account keys in sorted order.
func (a *Accounts) Keys() []string {
	a.mu.RLock()
	keys := make([]string, 0, len(a.tokens))
	for k := range a.tokens {
		keys = append(keys, k)
	}
	a.mu.RUnlock()
	slices.Sort(keys)
	return keys
}
