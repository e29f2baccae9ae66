// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package splatoon3

import (
	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/monitor"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// Deps are the shared collaborators of every Splatoon 3 monitor.
type Deps struct {
	// Client talks to the schedule feed.
	Client *upstream.Client
	// Cache coalesces feed fetches per account.
	Cache *tenant.Cache
	// TitleID is the platform game ID of Splatoon 3.
	TitleID string
	// Modes overrides DefaultModes when set.
	Modes  ModeTable
	Logger zerolog.Logger
	// NewSource overrides the HTTP source, for tests.
	NewSource func(scope monitor.Scope, cfg monitor.Config) Source
}

// Register adds the fest, versus and coop monitors, in that priority order,
// to r. Only the kinds listed in enabled are registered.
func Register(r *monitor.Registry, d Deps, enabled []monitor.Kind) {
	on := make(map[monitor.Kind]bool, len(enabled))
	for _, k := range enabled {
		on[k] = true
	}

	for _, kind := range []monitor.Kind{monitor.KindSplatoon3Fest, monitor.KindSplatoon3Versus, monitor.KindSplatoon3Coop} {
		if on[kind] {
			r.Register(kind, d.factory)
		}
	}
}

func (d Deps) factory(scope monitor.Scope, cfg monitor.Config) (monitor.Monitor, error) {
	var source Source
	if d.NewSource != nil {
		source = d.NewSource(scope, cfg)
	} else {
		source = NewHTTPSource(d.Client, d.Cache, scope.Account, scope.Token, cfg.Locale)
	}
	return NewMonitor(scope, cfg, source, d.TitleID, d.Modes, d.Logger)
}
