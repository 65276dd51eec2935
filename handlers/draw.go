// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/draw"
	"github.com/danielhkuo/quickly-draw/engine"
	"github.com/danielhkuo/quickly-draw/middleware"
	"github.com/danielhkuo/quickly-draw/models"
)

// maxScheduleMinutes caps how far ahead a draw may be scheduled (30 days).
const maxScheduleMinutes = 30 * 24 * 60

type DrawHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	eng *engine.Engine
}

func NewDrawHandler(db *sql.DB, cfg cliparse.Config, eng *engine.Engine) *DrawHandler {
	return &DrawHandler{db: db, cfg: cfg, eng: eng}
}

// GetRaffle handles GET /raffles/{slug}
// Returns public raffle details; the commitment secret stays sealed.
func (h *DrawHandler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	raffle, err := h.eng.GetRaffleBySlug(r.Context(), shareSlug)
	if err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, raffle)
}

// GetDrawStatus handles GET /raffles/{slug}/draw
// A raffle past its draw time is drawn by this read if nobody has yet.
func (h *DrawHandler) GetDrawStatus(w http.ResponseWriter, r *http.Request) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	raffle, err := h.eng.GetRaffleBySlug(r.Context(), shareSlug)
	if err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	st, err := h.eng.GetDrawStatus(r.Context(), raffle.ID)
	if err != nil {
		writeEngineError(w, err, "load draw status")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, drawStatusResponse(st, h.eng.Now()))
}

func drawStatusResponse(st *engine.DrawStatus, now time.Time) models.DrawStatusResponse {
	rf := st.Raffle
	resp := models.DrawStatusResponse{
		RaffleID:         rf.ID,
		Status:           rf.Status,
		ParticipantCount: rf.ParticipantCount,
		Capacity:         rf.Capacity,
		DrawAt:           rf.DrawAt,
		DrawnAt:          rf.DrawnAt,
	}
	if rf.CommitmentHash != nil {
		resp.CommitmentHash = draw.FormatHash(*rf.CommitmentHash)
	}
	if rf.DrawAt != nil && st.Result == nil {
		resp.DrawsIn = humanize.RelTime(*rf.DrawAt, now, "ago", "from now")
	}
	if st.Result != nil {
		resp.CommitmentSecret = st.Result.Secret
		resp.WinningParticipationID = st.Result.WinnerID
		resp.Ranking = rankedEntries(st.Result)
	}
	return resp
}

// ScheduleDraw handles POST /raffles/{id}/draw/schedule
func (h *DrawHandler) ScheduleDraw(w http.ResponseWriter, r *http.Request) {
	raffleID := r.PathValue("id")
	if raffleID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "raffle_id is required")
		return
	}
	if !authorizeAdmin(w, r, h.cfg, raffleID) {
		return
	}

	var req models.ScheduleDrawRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Minutes <= 0 || req.Minutes > maxScheduleMinutes {
		middleware.ErrorResponse(w, http.StatusBadRequest, "minutes must be between 1 and 43200")
		return
	}

	res, err := h.eng.Schedule(r.Context(), raffleID, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		writeEngineError(w, err, "schedule draw")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ScheduleDrawResponse{
		Status:         res.Status,
		DrawAt:         res.DrawAt,
		CommitmentHash: res.CommitmentHash,
	})
}

// RunDraw handles POST /raffles/{id}/draw/run
// The body is optional; autocommit defaults to true.
func (h *DrawHandler) RunDraw(w http.ResponseWriter, r *http.Request) {
	raffleID := r.PathValue("id")
	if raffleID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "raffle_id is required")
		return
	}
	if !authorizeAdmin(w, r, h.cfg, raffleID) {
		return
	}

	var req models.RunDrawRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	autoCommit := req.AutoCommit == nil || *req.AutoCommit

	res, err := h.eng.Execute(r.Context(), raffleID, h.eng.Now(), engine.ExecuteOptions{AutoCommit: autoCommit})
	if errors.Is(err, engine.ErrAlreadyExecuted) && res != nil {
		resp := runDrawResponse(res)
		resp.AlreadyExecuted = true
		middleware.JSONResponse(w, http.StatusConflict, resp)
		return
	}
	if err != nil {
		writeEngineError(w, err, "run draw")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, runDrawResponse(res))
}

func runDrawResponse(res *engine.Result) models.RunDrawResponse {
	return models.RunDrawResponse{
		WinnerID:        res.WinnerID,
		Ranking:         rankedEntries(res),
		Shuffled:        res.Shuffled,
		CommitmentHash:  draw.FormatHash(res.CommitmentHash),
		Secret:          res.Secret,
		DrawnAt:         res.DrawnAt,
		AlreadyExecuted: !res.Fresh,
	}
}

// GetAudit handles GET /raffles/{slug}/audit
// Returns every input needed to replay the draw, and the server's own replay.
func (h *DrawHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	raffle, err := h.eng.GetRaffleBySlug(r.Context(), shareSlug)
	if err != nil {
		writeEngineError(w, err, "load raffle")
		return
	}

	if _, err := h.eng.EnsureFinalized(r.Context(), raffle.ID); err != nil {
		writeEngineError(w, err, "finalize draw")
		return
	}

	report, err := h.eng.Audit(r.Context(), raffle.ID)
	if err != nil {
		writeEngineError(w, err, "load audit")
		return
	}

	res := report.Result
	entries := make([]models.AuditEntry, len(res.Entries))
	for i, en := range res.Entries {
		entries[i] = models.AuditEntry{ParticipationID: en.ParticipationID, TicketCode: en.TicketCode}
	}

	resp := models.AuditResponse{
		RaffleID:         res.RaffleID,
		DrawnAt:          res.DrawnAt,
		Moment:           draw.FormatMoment(res.DrawnAt),
		CommitmentHash:   draw.FormatHash(res.CommitmentHash),
		CommitmentSecret: res.Secret,
		Entries:          entries,
		Shuffled:         res.Shuffled,
		Ranking:          rankedEntries(res),
		WinnerID:         res.WinnerID,
		Verified:         report.VerifyError == nil,
	}
	if report.VerifyError != nil {
		resp.VerifyError = report.VerifyError.Error()
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

func rankedEntries(res *engine.Result) []models.RankedEntry {
	codes := res.TicketCodes()
	out := make([]models.RankedEntry, len(res.Ranking))
	for i, id := range res.Ranking {
		out[i] = models.RankedEntry{Rank: i + 1, ParticipationID: id, TicketCode: codes[id]}
	}
	return out
}
