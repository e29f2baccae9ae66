// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package models defines the data structures shared across Presencewatch.

Key Components:

  - Presence, Game, Account, Friend: raw platform state as returned by upstream
  - ActivityDescriptor: presentation-ready record pushed to sinks and subscribers
  - ScheduleEntry: generic time-boxed schedule record used by monitors
  - Transition: descriptor change delivered to notification sinks
  - APIResponse: standard HTTP response envelope

Activity descriptors are treated as immutable values. The coordinator builds a
new descriptor on every recompute and compares it with Equal before pushing:

	next := &models.ActivityDescriptor{Details: "Turf War - Scorch Gorge"}
	if !prev.Equal(next) {
	    sink.SetActivity(ctx, id, next)
	}

Thread Safety:

All types are plain values. Callers must not mutate a descriptor after it has
been published; use Clone to derive a modified copy.
*/
package models
