// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/presencewatch/internal/models"
)

// Select returns the active entry: the first entry, ordered by start time
// with ties kept in input order, whose [Start, End) contains now. The input
// slice is not modified.
func Select[T any](entries []models.ScheduleEntry[T], now time.Time) (models.ScheduleEntry[T], bool) {
	sorted := make([]models.ScheduleEntry[T], len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	for _, e := range sorted {
		if e.Contains(now) {
			return e, true
		}
	}
	var zero models.ScheduleEntry[T]
	return zero, false
}

// NextBoundary returns the earliest start or end time after now, which is
// the next instant Select can return something different.
func NextBoundary[T any](entries []models.ScheduleEntry[T], now time.Time) (time.Time, bool) {
	var next time.Time
	consider := func(t time.Time) {
		if t.After(now) && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}
	for _, e := range entries {
		consider(e.Start)
		consider(e.End)
	}
	return next, !next.IsZero()
}

// ScheduleCache holds the last successfully fetched snapshot of a schedule
// source.
type ScheduleCache[S any] struct {
	mu        sync.RWMutex
	value     S
	valid     bool
	fetchedAt time.Time
	now       func() time.Time
}

// NewScheduleCache creates an empty cache.
func NewScheduleCache[S any]() *ScheduleCache[S] {
	return &ScheduleCache[S]{now: time.Now}
}

// Refresh fetches a new snapshot when force is set or nothing is cached. It
// calls fetch at most once. On failure the previous snapshot is kept and the
// error returned. It reports whether fetch was called.
func (c *ScheduleCache[S]) Refresh(ctx context.Context, force bool, fetch func(ctx context.Context) (S, error)) (bool, error) {
	c.mu.RLock()
	valid := c.valid
	c.mu.RUnlock()
	if valid && !force {
		return false, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return true, err
	}

	c.mu.Lock()
	c.value = v
	c.valid = true
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return true, nil
}

// Get returns the cached snapshot and whether there is one.
func (c *ScheduleCache[S]) Get() (S, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.valid
}

// FetchedAt returns when the snapshot was stored.
func (c *ScheduleCache[S]) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}
