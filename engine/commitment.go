// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quickly-draw/draw"
)

// EnsureCommitment creates the raffle's commitment if it has none, or
// verifies the stored one. Repeated calls return the same pair.
func (e *Engine) EnsureCommitment(ctx context.Context, raffleID string) (draw.Commitment, error) {
	r, err := getRaffle(ctx, e.db, raffleID)
	if err != nil {
		return draw.Commitment{}, err
	}
	if r.Terminal() && r.CommitmentHash == nil {
		return draw.Commitment{}, fmt.Errorf("%w: raffle is %s", ErrInvalidState, r.Status)
	}
	return ensureCommitment(ctx, e.db, raffleID, true)
}

// ensureCommitment runs against q so callers can include it in a transaction.
// With create unset a missing commitment is ErrCommitmentMissing.
func ensureCommitment(ctx context.Context, q querier, raffleID string, create bool) (draw.Commitment, error) {
	c, found, err := readCommitment(ctx, q, raffleID)
	if err != nil {
		return draw.Commitment{}, err
	}

	if !found {
		if !create {
			return draw.Commitment{}, ErrCommitmentMissing
		}

		fresh, err := draw.NewCommitment()
		if err != nil {
			return draw.Commitment{}, err
		}
		res, err := q.ExecContext(ctx, `
			UPDATE raffle
			SET commitment_secret = $1, commitment_hash = $2
			WHERE id = $3 AND commitment_hash IS NULL
		`, fresh.Secret, fresh.Hash, raffleID)
		if err != nil {
			return draw.Commitment{}, fmt.Errorf("failed to store commitment: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return draw.Commitment{}, err
		}
		if n == 1 {
			slog.Info("commitment created", "raffle_id", raffleID, "commitment_hash", draw.FormatHash(fresh.Hash))
			return fresh, nil
		}

		// Someone else committed first; theirs is the one that counts.
		c, found, err = readCommitment(ctx, q, raffleID)
		if err != nil {
			return draw.Commitment{}, err
		}
		if !found {
			return draw.Commitment{}, fmt.Errorf("commitment vanished for raffle %s", raffleID)
		}
	}

	if err := draw.VerifyCommitment(c.Secret, c.Hash); err != nil {
		slog.Error("commitment integrity failure", "raffle_id", raffleID, "error", err)
		return draw.Commitment{}, fmt.Errorf("%w: raffle %s: %v", ErrCommitmentIntegrity, raffleID, err)
	}
	return c, nil
}

// readCommitment reports found=false only when neither field is set. A hash
// without its secret is an integrity failure, not a missing commitment.
func readCommitment(ctx context.Context, q querier, raffleID string) (draw.Commitment, bool, error) {
	var secret, hash sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT commitment_secret, commitment_hash FROM raffle WHERE id = $1
	`, raffleID).Scan(&secret, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return draw.Commitment{}, false, ErrRaffleNotFound
	}
	if err != nil {
		return draw.Commitment{}, false, fmt.Errorf("failed to query commitment: %w", err)
	}

	switch {
	case !secret.Valid && !hash.Valid:
		return draw.Commitment{}, false, nil
	case !secret.Valid || !hash.Valid:
		return draw.Commitment{}, false, fmt.Errorf("%w: raffle %s has a partial commitment", ErrCommitmentIntegrity, raffleID)
	}
	return draw.Commitment{Secret: secret.String, Hash: hash.String}, true, nil
}
