// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-draw/auth"
	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/engine"
	"github.com/danielhkuo/quickly-draw/middleware"
)

// engineErrorStatus maps engine errors onto HTTP status codes.
func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrRaffleNotFound), errors.Is(err, engine.ErrParticipationNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidCapacity),
		errors.Is(err, engine.ErrInvalidSchedule),
		errors.Is(err, engine.ErrInvalidTicketCode):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrRaffleFull),
		errors.Is(err, engine.ErrDuplicateTicket),
		errors.Is(err, engine.ErrNotEnoughParticipants),
		errors.Is(err, engine.ErrCommitmentMissing),
		errors.Is(err, engine.ErrAlreadyExecuted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError reports validation failures verbatim and hides
// everything else behind a generic message.
func writeEngineError(w http.ResponseWriter, err error, action string) {
	status := engineErrorStatus(err)
	if status != http.StatusInternalServerError {
		middleware.ErrorResponse(w, status, err.Error())
		return
	}

	if errors.Is(err, engine.ErrCommitmentIntegrity) {
		slog.Error("commitment integrity failure", "action", action, "error", err)
		middleware.ErrorResponse(w, status, "Commitment integrity check failed; the draw was not run")
		return
	}

	slog.Error("request failed", "action", action, "error", err)
	middleware.ErrorResponse(w, status, "Failed to "+action)
}

// authorizeAdmin accepts the raffle owner's X-Admin-Key or the system
// administrator's X-Admin-Token. It writes the 401 itself.
func authorizeAdmin(w http.ResponseWriter, r *http.Request, cfg cliparse.Config, raffleID string) bool {
	if token := r.Header.Get("X-Admin-Token"); token != "" {
		if auth.ValidateAdminToken(token, cfg.AdminToken) == nil {
			return true
		}
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin token")
		return false
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(raffleID, adminKey, cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return false
	}
	return true
}
