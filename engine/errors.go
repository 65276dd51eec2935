// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "errors"

// Validation failures: reported to the caller, never retried automatically.
var (
	ErrRaffleNotFound        = errors.New("raffle not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrInvalidState          = errors.New("invalid raffle state for this action")
	ErrNotEnoughParticipants = errors.New("a draw needs at least 2 participants")
	ErrCommitmentMissing     = errors.New("raffle has no commitment")
	ErrRaffleFull            = errors.New("raffle is full")
	ErrDuplicateTicket       = errors.New("ticket already entered in this raffle")
	ErrInvalidTicketCode     = errors.New("ticket code must be at most 32 characters and may not contain '|'")
	ErrInvalidCapacity       = errors.New("capacity must be at least 2")
	ErrInvalidSchedule       = errors.New("draw must be scheduled in the future")
)

// ErrAlreadyExecuted is returned by a manual run on a raffle that was
// already drawn. The persisted result accompanies it.
var ErrAlreadyExecuted = errors.New("draw already executed")

// ErrCommitmentIntegrity means the stored secret no longer hashes to the
// stored commitment. The draw is aborted and the commitment is never replaced.
var ErrCommitmentIntegrity = errors.New("commitment integrity failure")

// ErrParticipantsChanged means entries kept arriving while a draw was being
// computed and retries were exhausted.
var ErrParticipantsChanged = errors.New("participants changed during draw")

var validationErrors = []error{
	ErrRaffleNotFound,
	ErrParticipationNotFound,
	ErrInvalidState,
	ErrNotEnoughParticipants,
	ErrCommitmentMissing,
	ErrRaffleFull,
	ErrDuplicateTicket,
	ErrInvalidTicketCode,
	ErrInvalidCapacity,
	ErrInvalidSchedule,
}

// IsValidation reports whether err is a caller-facing validation failure.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
