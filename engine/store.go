// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/quickly-draw/draw"
	"github.com/danielhkuo/quickly-draw/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const raffleColumns = `id, title, description, owner_name, status, capacity, participant_count,
	share_slug, draw_at, drawn_at, commitment_hash, commitment_secret,
	winning_participation_id, created_at`

func scanRaffle(row *sql.Row) (*models.Raffle, error) {
	var r models.Raffle
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.OwnerName, &r.Status, &r.Capacity,
		&r.ParticipantCount, &r.ShareSlug, &r.DrawAt, &r.DrawnAt, &r.CommitmentHash,
		&r.CommitmentSecret, &r.WinningParticipationID, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaffleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query raffle: %w", err)
	}
	return &r, nil
}

func getRaffle(ctx context.Context, q querier, raffleID string) (*models.Raffle, error) {
	return scanRaffle(q.QueryRowContext(ctx,
		`SELECT `+raffleColumns+` FROM raffle WHERE id = $1`, raffleID))
}

// GetRaffle loads a raffle by ID.
func (e *Engine) GetRaffle(ctx context.Context, raffleID string) (*models.Raffle, error) {
	return getRaffle(ctx, e.db, raffleID)
}

// GetRaffleBySlug loads a published raffle by its share slug.
func (e *Engine) GetRaffleBySlug(ctx context.Context, slug string) (*models.Raffle, error) {
	return scanRaffle(e.db.QueryRowContext(ctx,
		`SELECT `+raffleColumns+` FROM raffle WHERE share_slug = $1`, slug))
}

// listEntries returns the draw baseline: every participation with its ticket
// code, in entry order.
func listEntries(ctx context.Context, q querier, raffleID string) ([]draw.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, t.code
		FROM participation p
		JOIN ticket t ON t.id = p.ticket_id
		WHERE p.raffle_id = $1
		ORDER BY p.seq
	`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()

	entries := []draw.Entry{}
	for rows.Next() {
		var en draw.Entry
		if err := rows.Scan(&en.ParticipationID, &en.TicketCode); err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		entries = append(entries, en)
	}
	return entries, rows.Err()
}

// ListParticipations returns every participation of a raffle in entry order.
func (e *Engine) ListParticipations(ctx context.Context, raffleID string) ([]models.Participation, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT p.id, p.raffle_id, p.ticket_id, t.code, p.created_at, p.is_winner, p.rank
		FROM participation p
		JOIN ticket t ON t.id = p.ticket_id
		WHERE p.raffle_id = $1
		ORDER BY p.seq
	`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()

	out := []models.Participation{}
	for rows.Next() {
		var p models.Participation
		if err := rows.Scan(&p.ID, &p.RaffleID, &p.TicketID, &p.TicketCode, &p.CreatedAt, &p.IsWinner, &p.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HolderEntry is a participant's own view of their entry.
type HolderEntry struct {
	Participation models.Participation
	HolderName    string
}

// ParticipationByToken finds the entry a holder token was issued for.
func (e *Engine) ParticipationByToken(ctx context.Context, raffleID, holderToken string) (*HolderEntry, error) {
	var h HolderEntry
	p := &h.Participation
	err := e.db.QueryRowContext(ctx, `
		SELECT p.id, p.raffle_id, p.ticket_id, t.code, p.created_at, p.is_winner, p.rank, t.holder_name
		FROM participation p
		JOIN ticket t ON t.id = p.ticket_id
		WHERE t.raffle_id = $1 AND t.holder_token = $2
	`, raffleID, holderToken).Scan(&p.ID, &p.RaffleID, &p.TicketID, &p.TicketCode, &p.CreatedAt, &p.IsWinner, &p.Rank, &h.HolderName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query participation: %w", err)
	}
	return &h, nil
}

// Result is the persisted outcome of a draw, enough to replay it.
type Result struct {
	RaffleID       string
	WinnerID       string
	Ranking        []string
	Shuffled       []string
	Entries        []draw.Entry
	CommitmentHash string
	Secret         string
	DrawnAt        time.Time

	// Fresh is true only for the caller whose transaction finished the raffle.
	Fresh bool
}

// TicketCodes maps participation IDs to ticket codes.
func (r *Result) TicketCodes() map[string]string {
	codes := make(map[string]string, len(r.Entries))
	for _, en := range r.Entries {
		codes[en.ParticipationID] = en.TicketCode
	}
	return codes
}

// Audit converts the result into a replayable record.
func (r *Result) Audit() draw.Audit {
	return draw.Audit{
		RaffleID:       r.RaffleID,
		Moment:         r.DrawnAt,
		Entries:        r.Entries,
		Secret:         r.Secret,
		CommitmentHash: r.CommitmentHash,
		Shuffled:       r.Shuffled,
		Ranking:        r.Ranking,
		WinnerID:       r.WinnerID,
	}
}

func loadResult(ctx context.Context, q querier, raffleID string) (*Result, error) {
	res := Result{RaffleID: raffleID}
	var secret sql.NullString
	var entriesJSON, shuffledJSON, rankingJSON string

	err := q.QueryRowContext(ctx, `
		SELECT r.drawn_at, r.winning_participation_id, d.commitment_hash, r.commitment_secret,
		       d.entries, d.shuffled, d.ranking
		FROM raffle r
		JOIN draw_result d ON d.raffle_id = r.id
		WHERE r.id = $1
	`, raffleID).Scan(&res.DrawnAt, &res.WinnerID, &res.CommitmentHash, &secret,
		&entriesJSON, &shuffledJSON, &rankingJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no draw result for raffle %s", ErrInvalidState, raffleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draw result: %w", err)
	}
	res.Secret = secret.String
	res.DrawnAt = res.DrawnAt.UTC()

	if err := json.Unmarshal([]byte(entriesJSON), &res.Entries); err != nil {
		return nil, fmt.Errorf("failed to parse draw entries: %w", err)
	}
	if err := json.Unmarshal([]byte(shuffledJSON), &res.Shuffled); err != nil {
		return nil, fmt.Errorf("failed to parse draw order: %w", err)
	}
	if err := json.Unmarshal([]byte(rankingJSON), &res.Ranking); err != nil {
		return nil, fmt.Errorf("failed to parse draw ranking: %w", err)
	}
	return &res, nil
}

// LoadResult returns the persisted result of a finished raffle.
func (e *Engine) LoadResult(ctx context.Context, raffleID string) (*Result, error) {
	return loadResult(ctx, e.db, raffleID)
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}
