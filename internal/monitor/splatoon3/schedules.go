// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package splatoon3

import (
	"strings"

	"github.com/tomtom215/presencewatch/internal/models"
)

// Mode is the platform's mode tag for a Splatoon 3 activity.
type Mode string

const (
	ModeRegular          Mode = "regular"
	ModeBankaraChallenge Mode = "bankara_challenge"
	ModeBankaraOpen      Mode = "bankara_open"
	ModeXMatch           Mode = "xmatch"
	ModeEvent            Mode = "event"
	ModeFest             Mode = "fest"
	ModeCoop             Mode = "coop"
	ModeBigRun           Mode = "big_run"
)

// VersusModes are the modes with a battle rotation.
var VersusModes = []Mode{ModeRegular, ModeBankaraChallenge, ModeBankaraOpen, ModeXMatch, ModeEvent, ModeFest}

// rotatingModes always have an active rotation while the feed is current.
var rotatingModes = []Mode{ModeRegular, ModeBankaraChallenge, ModeBankaraOpen, ModeXMatch}

// Stage is a battle or Salmon Run stage.
type Stage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Rule is a battle rule such as Splat Zones.
type Rule struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// VsSetting is the payload of one battle rotation.
type VsSetting struct {
	Rule      Rule    `json:"rule"`
	Stages    []Stage `json:"stages"`
	EventName string  `json:"event_name,omitempty"`
}

// StagePair renders the rotation's stages as "A & B".
func (v VsSetting) StagePair() string {
	names := make([]string, len(v.Stages))
	for i, s := range v.Stages {
		names[i] = s.Name
	}
	return strings.Join(names, " & ")
}

// CoopSetting is the payload of one Salmon Run rotation.
type CoopSetting struct {
	Stage   Stage    `json:"stage"`
	Weapons []string `json:"weapons"`
	BigRun  bool     `json:"big_run"`
}

// Festival is one Splatfest.
type Festival struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	State string   `json:"state,omitempty"`
	Teams []string `json:"teams,omitempty"`
}

// Schedules is one snapshot of the schedule feed. Snapshots are shared
// through the tenant cache and must not be modified.
type Schedules struct {
	Versus    map[Mode][]models.ScheduleEntry[VsSetting] `json:"versus"`
	Coop      []models.ScheduleEntry[CoopSetting]        `json:"coop"`
	Festivals []models.ScheduleEntry[Festival]           `json:"festivals"`
}

// CoopEntries returns the Salmon Run rotations, or the Big Run rotations
// when bigRun is set.
func (s *Schedules) CoopEntries(bigRun bool) []models.ScheduleEntry[CoopSetting] {
	var out []models.ScheduleEntry[CoopSetting]
	for _, e := range s.Coop {
		if e.Payload.BigRun == bigRun {
			out = append(out, e)
		}
	}
	return out
}

// ModeInfo is the presentation data for one mode.
type ModeInfo struct {
	Name string `koanf:"name"`
	Icon string `koanf:"icon"`
}

// ModeTable maps mode tags to names and icon keys.
type ModeTable map[Mode]ModeInfo

// Lookup returns the info for m, falling back to the raw tag as its name.
func (t ModeTable) Lookup(m Mode) ModeInfo {
	if info, ok := t[m]; ok {
		return info
	}
	return ModeInfo{Name: string(m)}
}

// DefaultModes is the built-in mode table.
var DefaultModes = ModeTable{
	ModeRegular:          {Name: "Regular Battle", Icon: "mode-regular"},
	ModeBankaraChallenge: {Name: "Anarchy Battle (Series)", Icon: "mode-bankara"},
	ModeBankaraOpen:      {Name: "Anarchy Battle (Open)", Icon: "mode-bankara"},
	ModeXMatch:           {Name: "X Battle", Icon: "mode-x"},
	ModeEvent:            {Name: "Challenge", Icon: "mode-event"},
	ModeFest:             {Name: "Splatfest Battle", Icon: "mode-fest"},
	ModeCoop:             {Name: "Salmon Run", Icon: "mode-coop"},
	ModeBigRun:           {Name: "Big Run", Icon: "mode-bigrun"},
}
