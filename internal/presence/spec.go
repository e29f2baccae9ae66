// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package presence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/monitor"
)

// EntityKind distinguishes accounts from friends.
type EntityKind string

const (
	EntityAccount EntityKind = "account"
	EntityFriend  EntityKind = "friend"
)

var (
	ErrAlreadyTracked = errors.New("entity already tracked")
	ErrNotTracked     = errors.New("entity not tracked")
	ErrInvalidSpec    = errors.New("invalid entity spec")
)

// EntitySpec describes one tracked entity.
type EntitySpec struct {
	// ID is the account key for accounts and the platform user ID for
	// friends.
	ID   string
	Kind EntityKind
	// Account is the key of the account whose session is used.
	Account string
	Token   string
	// Interval overrides the default poll interval for the kind.
	Interval time.Duration
	// Monitors lists the monitor configurations of the entity. Disabled
	// entries are ignored.
	Monitors []monitor.Config
}

// Validate checks the spec's required fields.
func (s EntitySpec) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidSpec)
	case s.Kind != EntityAccount && s.Kind != EntityFriend:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidSpec, s.ID, s.Kind)
	case s.Account == "":
		return fmt.Errorf("%w: %s has no account", ErrInvalidSpec, s.ID)
	}
	return nil
}

// sameBase reports whether o can reuse the base loop of s.
func (s EntitySpec) sameBase(o EntitySpec) bool {
	return s.ID == o.ID && s.Kind == o.Kind && s.Account == o.Account && s.Token == o.Token
}

// Equal reports whether two specs are identical.
func (s EntitySpec) Equal(o EntitySpec) bool {
	return s.sameBase(o) && s.Interval == o.Interval &&
		slices.EqualFunc(s.Monitors, o.Monitors, monitor.Config.Equal)
}

// enabledMonitors returns the enabled monitor configurations in order.
func (s EntitySpec) enabledMonitors() []monitor.Config {
	out := make([]monitor.Config, 0, len(s.Monitors))
	for _, m := range s.Monitors {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// SpecsFromConfig derives the tracked entities from cfg: each account with
// track enabled, and every friend listed under an account. A monitor is
// enabled only while both the Splatoon 3 switch and its kind flag are on.
func SpecsFromConfig(cfg *config.Config) []EntitySpec {
	s3 := cfg.Monitors.Splatoon3
	enabled := cfg.Splatoon3MonitorKinds()
	monitors := func(kinds []string) []monitor.Config {
		if len(kinds) == 0 {
			return nil
		}
		out := make([]monitor.Config, len(kinds))
		for i, k := range kinds {
			out[i] = monitor.Config{
				Kind:     monitor.Kind(k),
				Enabled:  slices.Contains(enabled, k),
				Interval: s3.Interval,
				Locale:   s3.Locale,
			}
		}
		return out
	}

	var specs []EntitySpec
	for _, acc := range cfg.Accounts {
		if acc.Track {
			specs = append(specs, EntitySpec{
				ID:       acc.Key,
				Kind:     EntityAccount,
				Account:  acc.Key,
				Token:    acc.Token,
				Interval: acc.Interval,
				Monitors: monitors(acc.Monitors),
			})
		}
		for _, f := range acc.Friends {
			specs = append(specs, EntitySpec{
				ID:       f.ID,
				Kind:     EntityFriend,
				Account:  acc.Key,
				Token:    acc.Token,
				Interval: f.Interval,
				Monitors: monitors(f.Monitors),
			})
		}
	}
	return specs
}
