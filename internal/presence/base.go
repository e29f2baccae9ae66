// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package presence

import (
	"context"
	"sync"

	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// baseTask polls the platform for one entity. Accounts read the user
// resource, friends read the friends resource of their account; both go
// through the tenant cache so entities sharing an account share fetches.
type baseTask struct {
	spec   EntitySpec
	source upstream.PresenceSource
	cache  *tenant.Cache

	mu       sync.Mutex
	observed bool
	name     string
	presence models.Presence
}

func (t *baseTask) Init(context.Context) error { return nil }

func (t *baseTask) Update(ctx context.Context) error {
	if t.spec.Kind == EntityAccount {
		key := tenant.Key{Account: t.spec.Account, Resource: tenant.ResourceUser}
		acc, _, err := tenant.Get(ctx, t.cache, key, func(ctx context.Context) (*models.Account, error) {
			return t.source.CurrentUser(ctx, t.spec.Token)
		})
		if err != nil {
			return err
		}
		t.observe(acc.Name, acc.Presence)
		return nil
	}

	key := tenant.Key{Account: t.spec.Account, Resource: tenant.ResourceFriends}
	friends, _, err := tenant.Get(ctx, t.cache, key, func(ctx context.Context) ([]models.Friend, error) {
		return t.source.Friends(ctx, t.spec.Token)
	})
	if err != nil {
		return err
	}
	f, ok := models.FindFriend(friends, t.spec.ID)
	if !ok {
		// Unfriended or hidden: treat as offline and keep polling.
		t.observe("", models.Presence{State: models.StateOffline})
		return nil
	}
	t.observe(f.Name, f.Presence)
	return nil
}

func (t *baseTask) observe(name string, p models.Presence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observed = true
	if name != "" {
		t.name = name
	}
	t.presence = p
}

// observation returns the last observed presence.
func (t *baseTask) observation() (name string, p models.Presence, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name, t.presence, t.observed
}

// BaseDescriptor is the unenriched descriptor of a presence: the game being
// played, or nil when the entity is not playing anything.
func BaseDescriptor(p models.Presence) *models.ActivityDescriptor {
	if !p.Playing() {
		return nil
	}
	g := p.Game
	return &models.ActivityDescriptor{
		Details:        g.Name,
		State:          g.SysDescription,
		LargeImageKey:  g.ImageURL,
		LargeImageText: g.Name,
		StartTimestamp: p.UpdatedAt,
	}
}
