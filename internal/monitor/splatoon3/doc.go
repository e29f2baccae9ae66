// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package splatoon3 implements the Splatoon 3 schedule monitors.

Three monitor kinds share one schedule feed:

	splatoon3.fest     Splatfest title and battle stages while a Splatfest runs
	splatoon3.versus   "<mode> - <rule>" and the stage pair of the active rotation
	splatoon3.coop     Salmon Run / Big Run stage, weapons and rotation end

They are registered in that order, so an entity in a Splatfest battle is
described by the fest monitor when both it and the versus monitor are
configured.

The feed is fetched through the tenant cache keyed by (account, schedules), so
every monitor of one account shares a single upstream request per refetch
interval. Mode names and icon keys are configuration data (ModeTable), not
derived from the feed.
*/
package splatoon3
