// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/quickly-draw/auth"
	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/engine"
	"github.com/danielhkuo/quickly-draw/middleware"
	"github.com/danielhkuo/quickly-draw/models"
)

type ParticipationHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	eng *engine.Engine
}

func NewParticipationHandler(db *sql.DB, cfg cliparse.Config, eng *engine.Engine) *ParticipationHandler {
	return &ParticipationHandler{db: db, cfg: cfg, eng: eng}
}

// Enter handles POST /raffles/{slug}/participations
func (h *ParticipationHandler) Enter(w http.ResponseWriter, r *http.Request) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	var req models.EnterRaffleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.HolderName = strings.TrimSpace(req.HolderName)
	if len(req.HolderName) < 2 || len(req.HolderName) > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "holder_name must be 2-50 characters")
		return
	}

	raffle, err := h.eng.GetRaffleBySlug(r.Context(), shareSlug)
	if err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	holderToken, err := auth.GenerateHolderToken()
	if err != nil {
		slog.Error("failed to generate holder token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to enter raffle")
		return
	}

	res, err := h.eng.RecordParticipation(r.Context(), engine.Entry{
		RaffleID:    raffle.ID,
		HolderName:  req.HolderName,
		HolderToken: holderToken,
		TicketCode:  req.TicketCode,
		IPHash:      auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		writeEngineError(w, err, "enter raffle")
		return
	}

	// Link device to raffle as participant (if X-Device-UUID header present)
	deviceID, err := GetOrCreateDevice(h.db, r)
	if err != nil {
		slog.Warn("failed to get/create device", "error", err)
	} else if deviceID != "" {
		if err := LinkDeviceToRaffle(h.db, deviceID, raffle.ID, models.RoleParticipant, &res.ParticipationID); err != nil {
			slog.Warn("failed to link device to raffle", "error", err)
		}
	}

	middleware.JSONResponse(w, http.StatusCreated, models.EnterRaffleResponse{
		ParticipationID: res.ParticipationID,
		TicketCode:      res.TicketCode,
		HolderToken:     holderToken,
		Status:          res.Status,
	})
}

// GetMyParticipation handles GET /raffles/{slug}/my-participation
// Requires X-Holder-Token header
func (h *ParticipationHandler) GetMyParticipation(w http.ResponseWriter, r *http.Request) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	holderToken := r.Header.Get("X-Holder-Token")
	if holderToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Holder-Token header required")
		return
	}

	raffle, err := h.eng.GetRaffleBySlug(r.Context(), shareSlug)
	if err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	// A due draw is finalized first so the holder sees their rank.
	if _, err := h.eng.EnsureFinalized(r.Context(), raffle.ID); err != nil {
		slog.Warn("lazy draw failed", "raffle_id", raffle.ID, "error", err)
	} else if raffle, err = h.eng.GetRaffle(r.Context(), raffle.ID); err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	entry, err := h.eng.ParticipationByToken(r.Context(), raffle.ID, holderToken)
	if err != nil {
		writeEngineError(w, err, "load participation")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MyParticipationResponse{
		ParticipationID: entry.Participation.ID,
		TicketCode:      entry.Participation.TicketCode,
		HolderName:      entry.HolderName,
		EnteredAt:       entry.Participation.CreatedAt,
		RaffleStatus:    raffle.Status,
		IsWinner:        entry.Participation.IsWinner,
		Rank:            entry.Participation.Rank,
	})
}
