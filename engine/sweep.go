// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-draw/models"
)

// SweepReport counts what a single sweep did.
type SweepReport struct {
	Finalized int
	Skipped   int
	Failed    int
}

// DueRaffles lists raffles whose draw time has passed but that have not been
// drawn yet, oldest first. Raffles without enough entries are listed too so
// the sweep reports them instead of leaving them behind unnoticed.
func (e *Engine) DueRaffles(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id FROM raffle
		WHERE status = $1
		  AND draw_at IS NOT NULL AND draw_at <= $2
		  AND drawn_at IS NULL AND winning_participation_id IS NULL
		ORDER BY draw_at
	`, models.StatusReadyToDraw, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due raffles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan raffle id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Sweep draws every due raffle. A raffle drawn concurrently by a reader or
// another sweeper counts as finalized; one failure does not stop the others.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	now := e.Now()
	ids, err := e.DueRaffles(ctx, now)
	if err != nil {
		return SweepReport{}, err
	}
	if len(ids) == 0 {
		return SweepReport{}, nil
	}

	var finalized, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.sweepConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := e.Execute(gctx, id, e.Now(), ExecuteOptions{AutoCommit: true})
			switch {
			case err == nil, errors.Is(err, ErrAlreadyExecuted):
				finalized.Add(1)
			case IsValidation(err):
				skipped.Add(1)
				slog.Warn("skipping raffle in sweep", "raffle_id", id, "error", err)
			default:
				failed.Add(1)
				slog.Error("sweep failed to draw raffle", "raffle_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := SweepReport{
		Finalized: int(finalized.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	slog.Info("sweep completed",
		"due", len(ids),
		"finalized", report.Finalized,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
