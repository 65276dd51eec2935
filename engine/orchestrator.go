// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-draw/draw"
	"github.com/danielhkuo/quickly-draw/models"
)

// ExecuteOptions tune a single draw execution.
type ExecuteOptions struct {
	// AutoCommit creates a missing commitment instead of failing with
	// ErrCommitmentMissing.
	AutoCommit bool
}

// Execute runs the draw for raffleID at moment and persists it.
//
// If the raffle was already drawn when Execute starts, the stored result is
// returned together with ErrAlreadyExecuted. If another caller finishes the
// raffle while this one is computing, the stored result is returned with a
// nil error and Fresh unset.
func (e *Engine) Execute(ctx context.Context, raffleID string, moment time.Time, opts ExecuteOptions) (*Result, error) {
	moment = moment.UTC().Truncate(time.Second)

	for attempt := 1; attempt <= maxDrawAttempts; attempt++ {
		res, retry, err := e.executeOnce(ctx, raffleID, moment, opts)
		if err != nil || !retry {
			return res, err
		}
		slog.Warn("participants changed during draw, retrying", "raffle_id", raffleID, "attempt", attempt)
	}
	return nil, ErrParticipantsChanged
}

func (e *Engine) executeOnce(ctx context.Context, raffleID string, moment time.Time, opts ExecuteOptions) (*Result, bool, error) {
	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return nil, false, err
	}
	if r.Drawn() {
		res, err := loadResult(ctx, e.db, raffleID)
		if err != nil {
			return nil, false, err
		}
		return res, false, ErrAlreadyExecuted
	}
	if !isDrawable(r.Status) {
		return nil, false, fmt.Errorf("%w: cannot draw a %s raffle", ErrInvalidState, r.Status)
	}

	entries, err := listEntries(ctx, e.db, raffleID)
	if err != nil {
		return nil, false, err
	}
	if len(entries) < draw.MinParticipants {
		return nil, false, fmt.Errorf("%w: raffle has %d", ErrNotEnoughParticipants, len(entries))
	}

	c, err := ensureCommitment(ctx, e.db, raffleID, opts.AutoCommit)
	if err != nil {
		return nil, false, err
	}

	out, err := draw.Run(draw.Input{
		RaffleID: raffleID,
		Moment:   moment,
		Entries:  entries,
		Secret:   c.Secret,
	})
	if err != nil {
		return nil, false, err
	}

	res := &Result{
		RaffleID:       raffleID,
		WinnerID:       out.WinnerID,
		Ranking:        out.Ranking,
		Shuffled:       out.Shuffled,
		Entries:        entries,
		CommitmentHash: c.Hash,
		Secret:         c.Secret,
		DrawnAt:        moment,
		Fresh:          true,
	}

	won, err := e.persist(ctx, res)
	if err != nil {
		return nil, false, err
	}
	if won {
		slog.Info("draw executed",
			"raffle_id", raffleID,
			"winner_id", res.WinnerID,
			"participants", len(entries),
			"commitment_hash", draw.FormatHash(c.Hash),
		)
		e.dispatch(res)
		return res, false, nil
	}

	// The conditional write matched nothing: re-read instead of retrying blindly.
	current, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return nil, false, err
	}
	if current.Drawn() {
		stored, err := loadResult(ctx, e.db, raffleID)
		if err != nil {
			return nil, false, err
		}
		slog.Info("draw already finalized by another caller", "raffle_id", raffleID, "winner_id", stored.WinnerID)
		return stored, false, nil
	}
	if !isDrawable(current.Status) {
		return nil, false, fmt.Errorf("%w: raffle became %s during draw", ErrInvalidState, current.Status)
	}
	if current.ParticipantCount != len(entries) {
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("draw for raffle %s was not persisted", raffleID)
}

// persist writes the winner, every rank, the final status and the audit
// trail in one transaction. It reports false when the raffle was no longer
// eligible: already drawn, cancelled, or its entries changed.
func (e *Engine) persist(ctx context.Context, res *Result) (bool, error) {
	entriesJSON, err := json.Marshal(res.Entries)
	if err != nil {
		return false, fmt.Errorf("failed to encode entries: %w", err)
	}
	shuffledJSON, err := json.Marshal(res.Shuffled)
	if err != nil {
		return false, fmt.Errorf("failed to encode draw order: %w", err)
	}
	rankingJSON, err := json.Marshal(res.Ranking)
	if err != nil {
		return false, fmt.Errorf("failed to encode ranking: %w", err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// draw_at is overwritten with the actual execution time.
	upd, err := tx.ExecContext(ctx, `
		UPDATE raffle
		SET status = $1, drawn_at = $2, draw_at = $2, winning_participation_id = $3
		WHERE id = $4
		  AND drawn_at IS NULL AND winning_participation_id IS NULL
		  AND status IN ($5, $6, $7)
		  AND participant_count = $8
		  AND commitment_hash = $9
	`, models.StatusFinished, res.DrawnAt, res.WinnerID, res.RaffleID,
		drawableStatuses[0], drawableStatuses[1], drawableStatuses[2],
		len(res.Entries), res.CommitmentHash)
	if err != nil {
		return false, fmt.Errorf("failed to finish raffle: %w", err)
	}
	n, err := rowsAffected(upd)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	for i, participationID := range res.Ranking {
		rank := i + 1
		upd, err := tx.ExecContext(ctx, `
			UPDATE participation SET is_winner = $1, rank = $2
			WHERE id = $3 AND raffle_id = $4 AND rank IS NULL
		`, rank == 1, rank, participationID, res.RaffleID)
		if err != nil {
			return false, fmt.Errorf("failed to rank participation: %w", err)
		}
		n, err := rowsAffected(upd)
		if err != nil {
			return false, err
		}
		if n != 1 {
			return false, fmt.Errorf("participation %s already ranked or missing", participationID)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO draw_result (raffle_id, drawn_at, commitment_hash, entries, shuffled, ranking)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, res.RaffleID, res.DrawnAt, res.CommitmentHash, string(entriesJSON), string(shuffledJSON), string(rankingJSON))
	if err != nil {
		return false, fmt.Errorf("failed to store draw result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit draw: %w", err)
	}
	return true, nil
}

// EnsureFinalized is the single finalize routine shared by reads and the
// sweep. It returns the stored result for a drawn raffle, draws a raffle
// that is due, and returns nil for one that is not due yet.
func (e *Engine) EnsureFinalized(ctx context.Context, raffleID string) (*Result, error) {
	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return nil, err
	}
	if r.Drawn() {
		return loadResult(ctx, e.db, raffleID)
	}
	if !e.due(r) {
		return nil, nil
	}

	res, err := e.Execute(ctx, raffleID, e.Now(), ExecuteOptions{AutoCommit: true})
	if errors.Is(err, ErrAlreadyExecuted) {
		return res, nil
	}
	return res, err
}

// due reports whether a raffle is ready to draw and past its time. Too few
// entries is left for Execute to refuse, so the reader hears about it.
func (e *Engine) due(r *models.Raffle) bool {
	return r.Status == models.StatusReadyToDraw &&
		!r.Drawn() &&
		r.DrawAt != nil && !r.DrawAt.After(e.Now())
}

// DrawStatus is the public state of a raffle's draw.
type DrawStatus struct {
	Raffle *models.Raffle
	Result *Result // set once finished
}

// GetDrawStatus reads a raffle's draw state, finalizing it first if it is due.
func (e *Engine) GetDrawStatus(ctx context.Context, raffleID string) (*DrawStatus, error) {
	res, err := e.EnsureFinalized(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.StatusFinished && res == nil {
		res, err = loadResult(ctx, e.db, raffleID)
		if err != nil {
			return nil, err
		}
	}
	return &DrawStatus{Raffle: r, Result: res}, nil
}

// AuditReport is a finished draw together with the outcome of replaying it.
type AuditReport struct {
	Result      *Result
	VerifyError error
}

// Audit replays a finished draw from its persisted fields.
func (e *Engine) Audit(ctx context.Context, raffleID string) (*AuditReport, error) {
	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusFinished {
		return nil, fmt.Errorf("%w: results are sealed until the draw runs", ErrInvalidState)
	}

	res, err := loadResult(ctx, e.db, raffleID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Result: res}
	if r.CommitmentHash == nil || *r.CommitmentHash != res.CommitmentHash {
		report.VerifyError = fmt.Errorf("%w: published commitment differs from the one drawn with", ErrCommitmentIntegrity)
	} else if err := draw.Verify(res.Audit()); err != nil {
		report.VerifyError = err
	}
	if report.VerifyError != nil {
		slog.Error("draw audit failed", "raffle_id", raffleID, "error", report.VerifyError)
	}
	return report, nil
}
