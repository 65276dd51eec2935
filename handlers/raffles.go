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

const defaultBaseURL = "https://quickly-draw.com"

type RaffleHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	eng *engine.Engine
}

func NewRaffleHandler(db *sql.DB, cfg cliparse.Config, eng *engine.Engine) *RaffleHandler {
	return &RaffleHandler{db: db, cfg: cfg, eng: eng}
}

// CreateRaffle handles POST /raffles
func (h *RaffleHandler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRaffleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if strings.TrimSpace(req.Title) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if strings.TrimSpace(req.OwnerName) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "owner_name is required")
		return
	}

	raffle, err := h.eng.CreateRaffle(r.Context(), engine.NewRaffle{
		Title:       req.Title,
		Description: req.Description,
		OwnerName:   req.OwnerName,
		Capacity:    req.Capacity,
	})
	if err != nil {
		writeEngineError(w, err, "create raffle")
		return
	}

	adminKey := auth.GenerateAdminKey(raffle.ID, h.cfg.AdminKeySalt)

	// Link the owner's device (if X-Device-UUID header present)
	deviceID, err := GetOrCreateDevice(h.db, r)
	if err != nil {
		slog.Warn("failed to get/create device", "error", err)
	} else if deviceID != "" {
		if err := LinkDeviceToRaffle(h.db, deviceID, raffle.ID, models.RoleOwner, nil); err != nil {
			slog.Warn("failed to link device to raffle", "error", err)
		}
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateRaffleResponse{
		RaffleID: raffle.ID,
		AdminKey: adminKey,
	})
}

// PublishRaffle handles POST /raffles/{id}/publish
func (h *RaffleHandler) PublishRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := r.PathValue("id")
	if raffleID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "raffle_id is required")
		return
	}
	if !authorizeAdmin(w, r, h.cfg, raffleID) {
		return
	}

	shareSlug := auth.GenerateShareSlug(raffleID, h.cfg.RaffleSlugSalt)
	if err := h.eng.Publish(r.Context(), raffleID, shareSlug); err != nil {
		writeEngineError(w, err, "publish raffle")
		return
	}

	baseURL := strings.TrimRight(h.cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	middleware.JSONResponse(w, http.StatusOK, models.PublishRaffleResponse{
		ShareSlug: shareSlug,
		ShareURL:  baseURL + "/raffles/" + shareSlug,
	})
}

// CancelRaffle handles POST /raffles/{id}/cancel
func (h *RaffleHandler) CancelRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := r.PathValue("id")
	if raffleID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "raffle_id is required")
		return
	}
	if !authorizeAdmin(w, r, h.cfg, raffleID) {
		return
	}

	if err := h.eng.Cancel(r.Context(), raffleID); err != nil {
		writeEngineError(w, err, "cancel raffle")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RaffleStatusResponse{
		RaffleID: raffleID,
		Status:   models.StatusCancelled,
	})
}

// GetRaffleAdmin handles GET /raffles/{id}/admin
// Returns the raffle with every participation for the owner or administrator
func (h *RaffleHandler) GetRaffleAdmin(w http.ResponseWriter, r *http.Request) {
	raffleID := r.PathValue("id")
	if raffleID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "raffle_id is required")
		return
	}
	if !authorizeAdmin(w, r, h.cfg, raffleID) {
		return
	}

	raffle, err := h.eng.GetRaffle(r.Context(), raffleID)
	if err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	participations, err := h.eng.ListParticipations(r.Context(), raffleID)
	if err != nil {
		writeEngineError(w, err, "load participations")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RaffleWithParticipations{
		Raffle:         *raffle,
		Participations: participations,
	})
}
