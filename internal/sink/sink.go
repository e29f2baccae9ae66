// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package sink

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/models"
)

// ActivitySink receives the merged descriptor of an entity whenever it
// changes. A nil descriptor clears the entity's activity.
type ActivitySink interface {
	SetActivity(ctx context.Context, entityID string, d *models.ActivityDescriptor) error
}

// NotificationSink receives entity transitions.
type NotificationSink interface {
	Notify(ctx context.Context, t models.Transition) error
}

// Named is implemented by sinks that label their metrics and logs.
type Named interface {
	Name() string
}

func nameOf(v any) string {
	if n, ok := v.(Named); ok {
		return n.Name()
	}
	return "sink"
}

// LogSink logs descriptors and transitions.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "sink").Logger()}
}

// Name implements Named.
func (s *LogSink) Name() string { return "log" }

// SetActivity implements ActivitySink.
func (s *LogSink) SetActivity(_ context.Context, entityID string, d *models.ActivityDescriptor) error {
	if d == nil {
		s.logger.Info().Str("entity", entityID).Msg("Activity cleared")
		return nil
	}
	s.logger.Info().
		Str("entity", entityID).
		Str("details", d.Details).
		Str("state", d.State).
		Time("ends", d.EndTimestamp).
		Msg("Activity updated")
	return nil
}

// Notify implements NotificationSink.
func (s *LogSink) Notify(_ context.Context, t models.Transition) error {
	event := s.logger.Info()
	if t.Kind == models.TransitionError {
		event = s.logger.Warn().Str("error", t.Error)
	}
	if t.Current != nil {
		event = event.Str("details", t.Current.Details)
	}
	event.Str("entity", t.EntityID).Str("name", t.Name).Str("transition", string(t.Kind)).Msg("Presence transition")
	return nil
}

// ActivityFanout forwards descriptors to every sink. All sinks are called;
// their errors are joined.
type ActivityFanout []ActivitySink

// Name implements Named.
func (f ActivityFanout) Name() string { return "fanout" }

// SetActivity implements ActivitySink.
func (f ActivityFanout) SetActivity(ctx context.Context, entityID string, d *models.ActivityDescriptor) error {
	var errs []error
	for _, s := range f {
		if err := s.SetActivity(ctx, entityID, d.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotificationFanout forwards transitions to every sink.
type NotificationFanout []NotificationSink

// Name implements Named.
func (f NotificationFanout) Name() string { return "fanout" }

// Notify implements NotificationSink.
func (f NotificationFanout) Notify(ctx context.Context, t models.Transition) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
