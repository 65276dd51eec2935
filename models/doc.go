// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateRaffleRequest: title, description, owner_name, capacity
  - EnterRaffleRequest: holder_name, ticket_code (optional)
  - ScheduleDrawRequest: minutes
  - RunDrawRequest: autocommit (optional, defaults to true)
  - RegisterDeviceRequest: platform

# Response Types

Types for JSON responses:

  - CreateRaffleResponse: raffle_id, admin_key
  - PublishRaffleResponse: share_slug, share_url
  - EnterRaffleResponse: participation_id, ticket_code, holder_token, status
  - ScheduleDrawResponse: status, draw_at, commitment_hash
  - DrawStatusResponse: public draw view; the secret and ranking appear only once finished
  - RunDrawResponse: winner, ranking, shuffled order, revealed secret
  - AuditResponse: every input needed to replay a finished draw
  - MyParticipationResponse: a holder's own entry and rank
  - ErrorResponse: error, message

# Domain Types

  - Raffle: raffle metadata, lifecycle state and commitment
  - Participation: one entry, its ticket code and its final rank

# Constants

Status values:

	StatusDraft       = "draft"
	StatusPublished   = "published"
	StatusActive      = "active"
	StatusReadyToDraw = "ready_to_draw"
	StatusFinished    = "finished"
	StatusCancelled   = "cancelled"

Device roles:

	RoleParticipant = "participant"
	RoleOwner       = "owner"

Notification kinds:

	NotifyDrawFinished = "draw_finished"
	NotifyDrawWon      = "draw_won"
*/
package models
