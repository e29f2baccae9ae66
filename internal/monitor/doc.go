// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package monitor defines enrichment monitors: loop tasks that fetch and cache
game-specific schedules and turn them into activity descriptors.

A Monitor is a loop.Task with two extra capabilities. Kind names the monitor
so the coordinator can look it up explicitly through a Set instead of
inspecting types. BuildActivity is a pure function of the monitor's cached
selections and the tracked entity's presence; the coordinator calls it on
every recompute, not only after the monitor's own cycle.

Monitors are created by a Registry from a Scope (who is tracked, with which
session) and a Config. The registry order is also the order in which
BuildActivity is tried: the first monitor that returns a descriptor wins.

Schedule helpers:
  - Select picks the first entry, by start time and then input order, whose
    [Start, End) contains now
  - NextBoundary reports when that selection can next change; monitors
    return it from NextWake so their loop wakes at rotation boundaries
  - ScheduleCache keeps the last good snapshot and refetches it at most once
    per cycle, falling back to the stale snapshot when the refetch fails
*/
package monitor
