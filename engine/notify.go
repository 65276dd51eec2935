// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-draw/models"
)

// Notifier receives finished draws. Delivery is best effort: an error is
// logged and never affects the persisted result.
type Notifier interface {
	DrawFinished(ctx context.Context, res *Result) error
}

// dispatch notifies in the background so the draw caller is not delayed.
func (e *Engine) dispatch(res *Result) {
	if e.notifier == nil {
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := e.notifier.DrawFinished(ctx, res); err != nil {
			slog.Warn("failed to send draw notifications", "raffle_id", res.RaffleID, "error", err)
		}
	}()
}

// OutboxNotifier writes one notification row per device linked to the
// raffle. Devices poll them from GET /devices/notifications.
type OutboxNotifier struct {
	db *sql.DB
}

func NewOutboxNotifier(db *sql.DB) *OutboxNotifier {
	return &OutboxNotifier{db: db}
}

type linkedDevice struct {
	deviceID        string
	participationID sql.NullString
}

func (n *OutboxNotifier) DrawFinished(ctx context.Context, res *Result) error {
	var title string
	if err := n.db.QueryRowContext(ctx, `SELECT title FROM raffle WHERE id = $1`, res.RaffleID).Scan(&title); err != nil {
		return fmt.Errorf("failed to query raffle title: %w", err)
	}

	rows, err := n.db.QueryContext(ctx, `
		SELECT device_id, participation_id FROM device_raffle WHERE raffle_id = $1
	`, res.RaffleID)
	if err != nil {
		return fmt.Errorf("failed to query linked devices: %w", err)
	}
	var devices []linkedDevice
	for rows.Next() {
		var d linkedDevice
		if err := rows.Scan(&d.deviceID, &d.participationID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan linked device: %w", err)
		}
		devices = append(devices, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read linked devices: %w", err)
	}

	winnerCode := res.TicketCodes()[res.WinnerID]
	for _, d := range devices {
		kind := models.NotifyDrawFinished
		msg := fmt.Sprintf("The draw for %q has finished. Winning ticket: %s", title, winnerCode)
		if d.participationID.Valid && d.participationID.String == res.WinnerID {
			kind = models.NotifyDrawWon
			msg = fmt.Sprintf("Your ticket %s won %q!", winnerCode, title)
		}

		_, err := n.db.ExecContext(ctx, `
			INSERT INTO notification (id, device_id, raffle_id, kind, message)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), d.deviceID, res.RaffleID, kind, msg)
		if err != nil {
			return fmt.Errorf("failed to store notification: %w", err)
		}
	}

	slog.Info("draw notifications queued", "raffle_id", res.RaffleID, "devices", len(devices))
	return nil
}
