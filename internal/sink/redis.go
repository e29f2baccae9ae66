// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/presencewatch/internal/models"
)

const (
	onlineSetSuffix = "online"
	entityKeyInfix  = "entity:"
)

// RedisMirror writes each entity's current descriptor to <prefix>entity:<id> with a
// TTL and tracks online entities in the <prefix>online set. It is a
// write-only mirror for external readers; nothing is read back on start.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror wraps client.
func NewRedisMirror(client *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl}
}

// Name implements Named.
func (m *RedisMirror) Name() string { return "redis" }

// OnlineKey returns the key of the online set.
func (m *RedisMirror) OnlineKey() string {
	return m.prefix + onlineSetSuffix
}

// EntityKey returns the descriptor key of an entity. Descriptor keys live
// under their own namespace so no entity ID can name the online set.
func (m *RedisMirror) EntityKey(entityID string) string {
	return m.prefix + entityKeyInfix + entityID
}

// SetActivity implements ActivitySink.
func (m *RedisMirror) SetActivity(ctx context.Context, entityID string, d *models.ActivityDescriptor) error {
	key := m.EntityKey(entityID)

	pipe := m.client.TxPipeline()
	if d == nil {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, m.OnlineKey(), entityID)
	} else {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal descriptor: %w", err)
		}
		pipe.Set(ctx, key, data, m.ttl)
		pipe.SAdd(ctx, m.OnlineKey(), entityID)
		pipe.Expire(ctx, m.OnlineKey(), m.ttl*2)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror presence for %s: %w", entityID, err)
	}
	return nil
}

// Refresh extends the TTL of every mirrored entity. The coordinator calls it
// periodically so unchanged descriptors do not expire.
func (m *RedisMirror) Refresh(ctx context.Context, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	pipe := m.client.Pipeline()
	for _, id := range entityIDs {
		pipe.Expire(ctx, m.EntityKey(id), m.ttl)
	}
	pipe.Expire(ctx, m.OnlineKey(), m.ttl*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence TTL: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
