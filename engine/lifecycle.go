// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-draw/auth"
	"github.com/danielhkuo/quickly-draw/draw"
	"github.com/danielhkuo/quickly-draw/models"
)

// MaxTicketCodeLen bounds a ticket code. Codes are joined with "|" into the
// draw seed, so the separator is never allowed inside one.
const MaxTicketCodeLen = 32

var transitions = map[string][]string{
	models.StatusDraft:       {models.StatusPublished, models.StatusCancelled},
	models.StatusPublished:   {models.StatusActive, models.StatusReadyToDraw, models.StatusFinished, models.StatusCancelled},
	models.StatusActive:      {models.StatusReadyToDraw, models.StatusFinished, models.StatusCancelled},
	models.StatusReadyToDraw: {models.StatusReadyToDraw, models.StatusFinished, models.StatusCancelled},
}

// CanTransition reports whether a raffle may move from one status to another.
// Finished and cancelled raffles never move again.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// drawableStatuses are the statuses a draw may be executed from.
var drawableStatuses = []string{models.StatusPublished, models.StatusActive, models.StatusReadyToDraw}

func isDrawable(status string) bool {
	return CanTransition(status, models.StatusFinished)
}

// NewRaffle describes a raffle to create in draft.
type NewRaffle struct {
	Title       string
	Description string
	OwnerName   string
	Capacity    *int
}

// CreateRaffle stores a new draft raffle.
func (e *Engine) CreateRaffle(ctx context.Context, in NewRaffle) (*models.Raffle, error) {
	if in.Capacity != nil && *in.Capacity < draw.MinParticipants {
		return nil, ErrInvalidCapacity
	}

	raffleID, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO raffle (id, title, description, owner_name, status, capacity, participant_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
	`, raffleID, in.Title, in.Description, in.OwnerName, models.StatusDraft, in.Capacity, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert raffle: %w", err)
	}

	slog.Info("raffle created", "raffle_id", raffleID, "owner", in.OwnerName)

	return &models.Raffle{
		ID:          raffleID,
		Title:       in.Title,
		Description: in.Description,
		OwnerName:   in.OwnerName,
		Status:      models.StatusDraft,
		Capacity:    in.Capacity,
		CreatedAt:   now,
	}, nil
}

// Publish opens a draft raffle for entries under the given share slug.
func (e *Engine) Publish(ctx context.Context, raffleID, shareSlug string) error {
	res, err := e.db.ExecContext(ctx, `
		UPDATE raffle SET status = $1, share_slug = $2
		WHERE id = $3 AND status = $4
	`, models.StatusPublished, shareSlug, raffleID, models.StatusDraft)
	if err != nil {
		return fmt.Errorf("failed to publish raffle: %w", err)
	}
	if err := e.expectTransition(ctx, res, raffleID, models.StatusPublished); err != nil {
		return err
	}

	slog.Info("raffle published", "raffle_id", raffleID, "share_slug", shareSlug)
	return nil
}

// Cancel moves any non-terminal, undrawn raffle to cancelled.
func (e *Engine) Cancel(ctx context.Context, raffleID string) error {
	res, err := e.db.ExecContext(ctx, `
		UPDATE raffle SET status = $1
		WHERE id = $2 AND status NOT IN ($3, $4)
		  AND drawn_at IS NULL AND winning_participation_id IS NULL
	`, models.StatusCancelled, raffleID, models.StatusFinished, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel raffle: %w", err)
	}
	if err := e.expectTransition(ctx, res, raffleID, models.StatusCancelled); err != nil {
		return err
	}

	slog.Info("raffle cancelled", "raffle_id", raffleID)
	return nil
}

// expectTransition turns a conditional update that matched nothing into
// the right validation error.
func (e *Engine) expectTransition(ctx context.Context, res sql.Result, raffleID, to string) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, r.Status, to)
}

// Entry is one ticket entering a raffle.
type Entry struct {
	RaffleID    string
	HolderName  string
	HolderToken string
	TicketCode  string
	IPHash      string
	UserAgent   string
}

// EntryResult describes the participation that was recorded.
type EntryResult struct {
	ParticipationID  string
	TicketCode       string
	Status           string
	ParticipantCount int
	DrawAt           *time.Time

	// CapacityReached is set only for the entry that filled the raffle.
	CapacityReached bool
}

// RecordParticipation adds an entry and, in the same transaction, checks the
// capacity trigger. Of several entries racing to fill the last slot, exactly
// one schedules the draw.
func (e *Engine) RecordParticipation(ctx context.Context, in Entry) (*EntryResult, error) {
	in.TicketCode = strings.TrimSpace(in.TicketCode)
	if in.TicketCode == "" {
		code, err := auth.GenerateTicketCode()
		if err != nil {
			return nil, err
		}
		in.TicketCode = code
	}
	if len(in.TicketCode) > MaxTicketCodeLen || strings.Contains(in.TicketCode, "|") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTicketCode, in.TicketCode)
	}

	ticketID, err := auth.GenerateID(12)
	if err != nil {
		return nil, err
	}
	participationID, err := auth.GenerateID(12)
	if err != nil {
		return nil, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Claim a slot first; this also takes the raffle row lock so concurrent
	// entries serialize on it.
	res, err := tx.ExecContext(ctx, `
		UPDATE raffle
		SET participant_count = participant_count + 1,
		    status = CASE WHEN status = $1 THEN $2 ELSE status END
		WHERE id = $3 AND status IN ($1, $2)
		  AND (capacity IS NULL OR participant_count < capacity)
	`, models.StatusPublished, models.StatusActive, in.RaffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		tx.Rollback()
		return nil, e.entryRefused(ctx, in.RaffleID)
	}

	var count int
	var capacity sql.NullInt64
	var drawAt sql.NullTime
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT participant_count, capacity, draw_at, status FROM raffle WHERE id = $1
	`, in.RaffleID).Scan(&count, &capacity, &drawAt, &status)
	if err != nil {
		return nil, fmt.Errorf("failed to read raffle: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM ticket WHERE raffle_id = $1 AND code = $2)
	`, in.RaffleID, in.TicketCode).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check ticket: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTicket, in.TicketCode)
	}

	now := e.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket (id, raffle_id, code, holder_name, holder_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ticketID, in.RaffleID, in.TicketCode, in.HolderName, in.HolderToken, now)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTicket, in.TicketCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO participation (id, raffle_id, ticket_id, seq, created_at, is_winner, ip_hash, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, participationID, in.RaffleID, ticketID, count, now, false, in.IPHash, in.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to insert participation: %w", err)
	}

	out := &EntryResult{
		ParticipationID:  participationID,
		TicketCode:       in.TicketCode,
		Status:           status,
		ParticipantCount: count,
	}
	if drawAt.Valid {
		t := drawAt.Time
		out.DrawAt = &t
	}

	if capacity.Valid && int64(count) >= capacity.Int64 && !drawAt.Valid {
		triggered, at, err := e.capacityReached(ctx, tx, in.RaffleID, now)
		if err != nil {
			return nil, err
		}
		if triggered {
			out.CapacityReached = true
			out.Status = models.StatusReadyToDraw
			out.DrawAt = &at
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit participation: %w", err)
	}

	slog.Info("participation recorded",
		"raffle_id", in.RaffleID,
		"participation_id", participationID,
		"participant_count", count,
		"capacity_reached", out.CapacityReached,
	)
	return out, nil
}

// capacityReached fixes the commitment and schedules the draw. It only
// succeeds for the first caller: draw_at must still be unset.
func (e *Engine) capacityReached(ctx context.Context, tx *sql.Tx, raffleID string, now time.Time) (bool, time.Time, error) {
	if _, err := ensureCommitment(ctx, tx, raffleID, true); err != nil {
		return false, time.Time{}, err
	}

	drawAt := now.Add(e.countdown).Truncate(time.Second)
	res, err := tx.ExecContext(ctx, `
		UPDATE raffle SET draw_at = $1, status = $2
		WHERE id = $3 AND draw_at IS NULL AND drawn_at IS NULL
	`, drawAt, models.StatusReadyToDraw, raffleID)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to schedule draw: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, time.Time{}, err
	}
	if n == 0 {
		return false, time.Time{}, nil
	}

	slog.Info("capacity reached, draw scheduled", "raffle_id", raffleID, "draw_at", drawAt)
	return true, drawAt, nil
}

// entryRefused explains why a slot could not be claimed.
func (e *Engine) entryRefused(ctx context.Context, raffleID string) error {
	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return err
	}
	if !r.Terminal() && r.Capacity != nil && r.ParticipantCount >= *r.Capacity {
		return ErrRaffleFull
	}
	return fmt.Errorf("%w: raffle is %s and not accepting entries", ErrInvalidState, r.Status)
}

// ScheduleResult is what a participant needs to hold the operator to the draw.
type ScheduleResult struct {
	Status         string
	DrawAt         time.Time
	CommitmentHash string
}

// Schedule sets draw_at = now + after, freezes entries by moving the raffle
// to ready_to_draw, and fixes the commitment if there is none yet. A raffle
// with fewer than two entries is refused.
func (e *Engine) Schedule(ctx context.Context, raffleID string, after time.Duration) (*ScheduleResult, error) {
	if after <= 0 {
		return nil, ErrInvalidSchedule
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := getRaffle(ctx, tx, raffleID)
	if err != nil {
		return nil, err
	}
	if r.Drawn() {
		return nil, ErrAlreadyExecuted
	}
	if !CanTransition(r.Status, models.StatusReadyToDraw) {
		return nil, fmt.Errorf("%w: cannot schedule a %s raffle", ErrInvalidState, r.Status)
	}
	// Scheduling freezes entries, so a raffle that could never be drawn
	// must not get there.
	if r.ParticipantCount < draw.MinParticipants {
		return nil, fmt.Errorf("%w: raffle has %d", ErrNotEnoughParticipants, r.ParticipantCount)
	}

	c, err := ensureCommitment(ctx, tx, raffleID, true)
	if err != nil {
		return nil, err
	}

	drawAt := e.Now().Add(after).Truncate(time.Second)
	res, err := tx.ExecContext(ctx, `
		UPDATE raffle SET draw_at = $1, status = $2
		WHERE id = $3 AND drawn_at IS NULL AND status IN ($4, $5, $6)
	`, drawAt, models.StatusReadyToDraw, raffleID,
		drawableStatuses[0], drawableStatuses[1], drawableStatuses[2])
	if err != nil {
		return nil, fmt.Errorf("failed to schedule draw: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: raffle changed while scheduling", ErrInvalidState)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit schedule: %w", err)
	}

	hash := draw.FormatHash(c.Hash)
	slog.Info("draw scheduled", "raffle_id", raffleID, "draw_at", drawAt, "commitment_hash", hash)

	return &ScheduleResult{
		Status:         models.StatusReadyToDraw,
		DrawAt:         drawAt,
		CommitmentHash: hash,
	}, nil
}
