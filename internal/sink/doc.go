// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package sink delivers merged presence to local and external consumers.

Two interfaces describe the consumers:
  - ActivitySink receives the current descriptor of an entity (nil when the
    entity has no activity)
  - NotificationSink receives transitions: came online, went offline,
    changed, or a loop stopped on an error

Implementations:
  - LogSink writes both to a zerolog logger
  - WebhookNotifier POSTs transitions as JSON, rate limited
  - RedisMirror keeps <prefix>entity:<id> and the <prefix>online set current with a TTL
  - Fanout forwards to several sinks

Sinks are external collaborators: their failures are logged and counted,
never returned to the coordinator. Dispatcher decouples the coordinator from
sink I/O with one worker. Descriptors are coalesced per entity so a sink
always ends on the latest one; transitions queue in order.
*/
package sink
