// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Draw API.

# Handler Types

Each handler is a struct with database, config and engine dependencies:

  - RaffleHandler: Raffle lifecycle (create, publish, cancel, admin view)
  - ParticipationHandler: Entering a raffle and reading one's own entry
  - DrawHandler: Public raffle info, draw status, scheduling, manual runs, audit
  - DeviceHandler: Device registration, raffle history and notifications

Handlers are created via constructor functions:

	raffleHandler := handlers.NewRaffleHandler(db, cfg, eng)

# Raffle Lifecycle

	draft → published → active → ready_to_draw → finished
	(any non-terminal) → cancelled

	POST /raffles                     → CreateRaffle (returns admin_key)
	POST /raffles/{id}/publish        → PublishRaffle (generates share_slug)
	POST /raffles/{id}/cancel         → CancelRaffle
	POST /raffles/{id}/draw/schedule  → ScheduleDraw (freezes entries, publishes commitment)
	POST /raffles/{id}/draw/run       → RunDraw (409 with the stored result if already drawn)

Admin operations accept the owner's X-Admin-Key or the administrator's
X-Admin-Token.

# Entering

	POST /raffles/{slug}/participations   → Enter (returns holder_token)
	GET  /raffles/{slug}/my-participation → GetMyParticipation (X-Holder-Token)

A raffle with a capacity schedules its own draw when the last slot fills.

# Draw

	GET /raffles/{slug}/draw  → GetDrawStatus
	GET /raffles/{slug}/audit → GetAudit

Reading the draw status of a raffle whose draw time has passed executes the
draw if no one else has. The commitment secret and the ranking are only
returned once the raffle is finished.

# Device Tracking

	POST /devices/register      → Register
	GET  /devices/me            → GetMe
	GET  /devices/my-raffles    → GetMyRaffles
	GET  /devices/notifications → GetNotifications

Device operations require the X-Device-UUID header.
*/
package handlers
