// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package presence owns the tracked entities and merges their loops into one
activity descriptor each.

An entity is an account or a friend seen through an account. Each entity has:
  - a base loop polling the platform through the tenant cache
  - zero or more monitor loops enriching the base presence
  - the last descriptor pushed downstream

Whenever a constituent loop completes a cycle the coordinator recomputes the
entity's descriptor without I/O: it builds the base descriptor from the
observed presence, asks each monitor in priority order to enrich it and keeps
the first answer. An unchanged descriptor is not pushed. A changed one goes
to the activity sink, the notification sink and the stream hub, in that
order, under the coordinator lock so every consumer sees the same sequence.

Failure propagation:
  - a monitor loop stopped by its policy is removed and the entity degrades
    to its base descriptor
  - a base loop stopped by its policy stops every monitor of the entity and
    clears its descriptor
  - either stop is reported once as an error transition

Lock order: Coordinator.ops, then Coordinator.mu, then the stream hub. Sinks
are called under Coordinator.mu and must not block; production wiring puts
a sink.Dispatcher in front of them.
*/
package presence
