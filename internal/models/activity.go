// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package models

import "time"

// ActivityDescriptor is the presentation-ready record pushed to sinks and
// stream subscribers. Descriptors are values: the coordinator replaces them
// wholesale and never mutates one that has been published.
type ActivityDescriptor struct {
	Details        string    `json:"details"`
	State          string    `json:"state,omitempty"`
	LargeImageKey  string    `json:"large_image_key,omitempty"`
	LargeImageText string    `json:"large_image_text,omitempty"`
	SmallImageKey  string    `json:"small_image_key,omitempty"`
	SmallImageText string    `json:"small_image_text,omitempty"`
	StartTimestamp time.Time `json:"start_timestamp,omitempty"`
	EndTimestamp   time.Time `json:"end_timestamp,omitempty"`
}

// Equal reports structural equality. Timestamps compare by instant so that
// monotonic clock readings and locations do not cause spurious pushes.
func (a *ActivityDescriptor) Equal(b *ActivityDescriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Details == b.Details &&
		a.State == b.State &&
		a.LargeImageKey == b.LargeImageKey &&
		a.LargeImageText == b.LargeImageText &&
		a.SmallImageKey == b.SmallImageKey &&
		a.SmallImageText == b.SmallImageText &&
		a.StartTimestamp.Equal(b.StartTimestamp) &&
		a.EndTimestamp.Equal(b.EndTimestamp)
}

// Clone returns a copy that can be handed to another goroutine.
func (a *ActivityDescriptor) Clone() *ActivityDescriptor {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// TransitionKind classifies a change of an entity's descriptor.
type TransitionKind string

const (
	TransitionOnline  TransitionKind = "online"
	TransitionOffline TransitionKind = "offline"
	TransitionChanged TransitionKind = "changed"
	TransitionError   TransitionKind = "error"
)

// Transition is delivered to notification sinks whenever the merged
// descriptor of an entity changes, and once when a loop stops on an error.
type Transition struct {
	EntityID string              `json:"entity_id"`
	Name     string              `json:"name,omitempty"`
	Kind     TransitionKind      `json:"kind"`
	Previous *ActivityDescriptor `json:"previous,omitempty"`
	Current  *ActivityDescriptor `json:"current,omitempty"`
	Error    string              `json:"error,omitempty"`
	At       time.Time           `json:"at"`
}

// ClassifyTransition returns the transition kind between two descriptors.
func ClassifyTransition(prev, next *ActivityDescriptor) TransitionKind {
	switch {
	case prev == nil && next != nil:
		return TransitionOnline
	case prev != nil && next == nil:
		return TransitionOffline
	default:
		return TransitionChanged
	}
}
