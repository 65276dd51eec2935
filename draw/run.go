// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Entry is one participation as seen by the draw: its id and the display
// code of the ticket behind it.
type Entry struct {
	ParticipationID string `json:"participation_id"`
	TicketCode      string `json:"ticket_code"`
}

// Input is everything a draw depends on.
type Input struct {
	RaffleID string
	Moment   time.Time
	Entries  []Entry // participation order
	Secret   string
}

// Outcome is the result of one draw.
type Outcome struct {
	Seed     []byte
	Shuffled []string
	Ranking  []string
	WinnerID string
}

// Run composes the seed, shuffles the participation ids and resolves the ranking.
func Run(in Input) (Outcome, error) {
	if in.Secret == "" {
		return Outcome{}, ErrEmptySecret
	}
	if len(in.Entries) < MinParticipants {
		return Outcome{}, ErrTooFewIDs
	}

	ids := make([]string, len(in.Entries))
	codes := make([]string, len(in.Entries))
	for i, e := range in.Entries {
		ids[i] = e.ParticipationID
		codes[i] = e.TicketCode
	}

	seed := ComposeSeed(in.RaffleID, in.Moment, codes, in.Secret)
	shuffled, err := Shuffle(ids, seed)
	if err != nil {
		return Outcome{}, err
	}
	winnerID, ranking := Resolve(shuffled)

	return Outcome{
		Seed:     seed,
		Shuffled: shuffled,
		Ranking:  ranking,
		WinnerID: winnerID,
	}, nil
}

// Audit is the published record of a finished draw.
type Audit struct {
	RaffleID       string
	Moment         time.Time
	Entries        []Entry
	Secret         string
	CommitmentHash string
	Shuffled       []string
	Ranking        []string
	WinnerID       string
}

// MismatchError reports which published field disagrees with the replay.
type MismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("draw replay mismatch on %s: published %q, recomputed %q", e.Field, e.Want, e.Got)
}

// Verify replays a published draw and checks the commitment, the elimination
// order, the ranking and the winner against it.
func Verify(a Audit) error {
	if err := VerifyCommitment(a.Secret, a.CommitmentHash); err != nil {
		return fmt.Errorf("commitment: %w", err)
	}

	out, err := Run(Input{
		RaffleID: a.RaffleID,
		Moment:   a.Moment,
		Entries:  a.Entries,
		Secret:   a.Secret,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if a.Shuffled != nil && !slices.Equal(a.Shuffled, out.Shuffled) {
		return &MismatchError{Field: "shuffled", Want: fmt.Sprint(a.Shuffled), Got: fmt.Sprint(out.Shuffled)}
	}
	if a.Ranking != nil && !slices.Equal(a.Ranking, out.Ranking) {
		return &MismatchError{Field: "ranking", Want: fmt.Sprint(a.Ranking), Got: fmt.Sprint(out.Ranking)}
	}
	if a.WinnerID != out.WinnerID {
		return &MismatchError{Field: "winner", Want: a.WinnerID, Got: out.WinnerID}
	}
	return nil
}

// IsMismatch reports whether err came from a replay disagreement.
func IsMismatch(err error) bool {
	var m *MismatchError
	return errors.As(err, &m) || errors.Is(err, ErrCommitmentMismatch)
}
