// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package models

import "time"

// PresenceState is the coarse activity state reported by the gaming platform.
type PresenceState string

const (
	StateOffline  PresenceState = "offline"
	StateInactive PresenceState = "inactive"
	StateOnline   PresenceState = "online"
	StatePlaying  PresenceState = "playing"
)

// Online reports whether the entity is connected to the platform.
// Inactive consoles are treated as offline.
func (s PresenceState) Online() bool {
	return s == StateOnline || s == StatePlaying
}

// Valid reports whether s is one of the known states.
func (s PresenceState) Valid() bool {
	switch s {
	case StateOffline, StateInactive, StateOnline, StatePlaying:
		return true
	default:
		return false
	}
}

// Game is the title an entity is currently playing.
type Game struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ImageURL       string        `json:"image_url,omitempty"`
	ModeTag        string        `json:"mode_tag,omitempty"`
	SysDescription string        `json:"sys_description,omitempty"`
	TotalPlayTime  time.Duration `json:"total_play_time,omitempty"`
	FirstPlayedAt  time.Time     `json:"first_played_at,omitempty"`
}

// Presence is the raw state of a tracked entity as fetched from upstream.
type Presence struct {
	State     PresenceState `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
	LogoutAt  time.Time     `json:"logout_at,omitempty"`
	Game      *Game         `json:"game,omitempty"`
}

// Playing reports whether the entity is in a game.
func (p Presence) Playing() bool {
	return p.State == StatePlaying && p.Game != nil
}

// Account is an authenticated platform user. Key is the tenant key the
// account is configured under and is never sent upstream.
type Account struct {
	Key      string   `json:"key"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ImageURL string   `json:"image_url,omitempty"`
	Presence Presence `json:"presence"`
}

// Friend is an entry of an account's friend list.
type Friend struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ImageURL string   `json:"image_url,omitempty"`
	Presence Presence `json:"presence"`
}

// FindFriend returns the friend with the given ID.
func FindFriend(friends []Friend, id string) (Friend, bool) {
	for i := range friends {
		if friends[i].ID == id {
			return friends[i], true
		}
	}
	return Friend{}, false
}
