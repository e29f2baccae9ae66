// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/logging"
	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/sink"
)

const (
	// redisPingTimeout bounds the startup connectivity check.
	redisPingTimeout = 5 * time.Second
	// redisRetryInitial is the first delay after a failed TTL refresh.
	redisRetryInitial = time.Second
)

// activeEntities lists entities that currently have a descriptor.
type activeEntities interface {
	ActiveIDs() []string
}

// sinkSet holds the configured sinks behind one dispatcher.
type sinkSet struct {
	Dispatcher *sink.Dispatcher

	mirror   *sink.RedisMirror
	redisTTL time.Duration
	names    []string
}

// initSinks builds the log, webhook and Redis sinks enabled in cfg. An
// unreachable Redis is logged and kept: go-redis reconnects on its own.
func initSinks(ctx context.Context, cfg config.SinksConfig) *sinkSet {
	logger := logging.WithComponent("sinks")
	set := &sinkSet{redisTTL: cfg.RedisTTL}

	var activity sink.ActivityFanout
	var notifications sink.NotificationFanout

	if cfg.Log {
		logSink := sink.NewLogSink(logger)
		activity = append(activity, logSink)
		notifications = append(notifications, logSink)
		set.names = append(set.names, logSink.Name())
	}

	if cfg.WebhookURL != "" {
		webhook := sink.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookRateLimit, cfg.WebhookTimeout)
		notifications = append(notifications, webhook)
		set.names = append(set.names, webhook.Name())
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis mirror unreachable at startup, will keep retrying")
		}
		cancel()

		set.mirror = sink.NewRedisMirror(client, cfg.RedisPrefix, cfg.RedisTTL)
		activity = append(activity, set.mirror)
		set.names = append(set.names, set.mirror.Name())
	}

	var activitySink sink.ActivitySink
	if len(activity) > 0 {
		activitySink = activity
	}
	var notificationSink sink.NotificationSink
	if len(notifications) > 0 {
		notificationSink = notifications
	}
	set.Dispatcher = sink.NewDispatcher(activitySink, notificationSink, cfg.QueueSize, logger)

	logger.Info().Strs("sinks", set.names).Int("queue_size", cfg.QueueSize).Msg("Sinks configured")
	return set
}

// RefreshLoop returns a loop that extends the TTL of mirrored descriptors
// every half TTL, or nil when the Redis mirror is disabled.
func (s *sinkSet) RefreshLoop(entities activeEntities) *loop.Loop {
	if s.mirror == nil || s.redisTTL <= 0 {
		return nil
	}
	mirror := s.mirror
	return loop.New(loop.Func(func(ctx context.Context) error {
		return mirror.Refresh(ctx, entities.ActiveIDs())
	}), s.refreshOptions())
}

// refreshOptions spaces failed refreshes out exponentially up to one
// interval, so an unreachable Redis is not hammered.
func (s *sinkSet) refreshOptions() loop.Options {
	interval := s.redisTTL / 2
	return loop.Options{
		Name:     "redis-mirror-refresh",
		Kind:     "redis-refresh",
		Interval: interval,
		Backoff:  loop.NewExponential(0, min(redisRetryInitial, interval), interval),
		Logger:   logging.WithComponent("sinks"),
	}
}

// Close releases the Redis connection, if any.
func (s *sinkSet) Close() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing Redis mirror")
	}
}
