// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Draw API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	eng := engine.New(db)
	mux := router.NewRouter(db, cfg, eng)

# Endpoints

Health:

	GET /health

Raffle management (admin, requires X-Admin-Key or X-Admin-Token):

	POST /raffles                    - Create raffle
	GET  /raffles/{id}/admin         - Raffle details with participations
	POST /raffles/{id}/publish       - Open for entries
	POST /raffles/{id}/cancel        - Cancel
	POST /raffles/{id}/draw/schedule - Freeze entries and schedule the draw
	POST /raffles/{id}/draw/run      - Run the draw now

Entering (public, uses share slug):

	POST /raffles/{slug}/participations   - Enter with a ticket
	GET  /raffles/{slug}/my-participation - Own entry (X-Holder-Token)

Draw (public, uses share slug):

	GET /raffles/{slug}       - Raffle details
	GET /raffles/{slug}/draw  - Draw status; runs a due draw
	GET /raffles/{slug}/audit - Replay inputs of a finished draw

Devices (X-Device-UUID):

	POST /devices/register
	GET  /devices/me
	GET  /devices/my-raffles
	GET  /devices/notifications

All routes except /health and / are wrapped with middleware.WithLogging.
*/
package router
