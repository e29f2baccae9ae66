// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package models

import "time"

// ScheduleEntry is one time-boxed record of an upstream schedule.
type ScheduleEntry[T any] struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Payload T         `json:"payload"`
}

// Contains reports whether now lies in [Start, End).
func (e ScheduleEntry[T]) Contains(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}
