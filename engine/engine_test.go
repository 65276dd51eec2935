// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-draw/draw"
	"github.com/danielhkuo/quickly-draw/models"
	"github.com/danielhkuo/quickly-draw/testutil"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// goldenSecret and the four-entry raffle R1 drawn at testNow always produce
// the ranking P1 P2 P3 P4.
var goldenSecret = strings.Repeat("abc", 11)[:32]

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *sql.DB) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(conn, opts...), conn
}

func testEntries(prefix string, n int) []draw.Entry {
	out := make([]draw.Entry, n)
	for i := range out {
		out[i] = draw.Entry{
			ParticipationID: fmt.Sprintf("%sP%d", prefix, i+1),
			TicketCode:      fmt.Sprintf("T-%04d", i+1),
		}
	}
	return out
}

// seedRaffle inserts a raffle with fixed IDs so draws are reproducible.
func seedRaffle(t *testing.T, conn *sql.DB, raffleID, status string, entries []draw.Entry) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO raffle (id, title, description, owner_name, status, participant_count, share_slug, created_at)
		VALUES ($1, 'Seeded Raffle', '', 'Owner', $2, $3, $4, $5)
	`, raffleID, status, len(entries), "slug-"+raffleID, testNow)
	require.NoError(t, err)

	for i, en := range entries {
		ticketID := raffleID + "-ticket-" + en.TicketCode
		_, err := conn.Exec(`
			INSERT INTO ticket (id, raffle_id, code, holder_name, holder_token, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ticketID, raffleID, en.TicketCode, "Holder", "token-"+en.ParticipationID, testNow)
		require.NoError(t, err)

		_, err = conn.Exec(`
			INSERT INTO participation (id, raffle_id, ticket_id, seq, created_at, is_winner)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, en.ParticipationID, raffleID, ticketID, i+1, testNow, false)
		require.NoError(t, err)
	}
}

func setCommitment(t *testing.T, conn *sql.DB, raffleID, secret string) {
	t.Helper()
	_, err := conn.Exec(`UPDATE raffle SET commitment_secret = $1, commitment_hash = $2 WHERE id = $3`,
		secret, draw.HashSecret(secret), raffleID)
	require.NoError(t, err)
}

func setDrawAt(t *testing.T, conn *sql.DB, raffleID string, at time.Time) {
	t.Helper()
	_, err := conn.Exec(`UPDATE raffle SET draw_at = $1 WHERE id = $2`, at, raffleID)
	require.NoError(t, err)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.StatusDraft, models.StatusPublished, true},
		{models.StatusDraft, models.StatusFinished, false},
		{models.StatusDraft, models.StatusCancelled, true},
		{models.StatusPublished, models.StatusActive, true},
		{models.StatusPublished, models.StatusReadyToDraw, true},
		{models.StatusActive, models.StatusReadyToDraw, true},
		{models.StatusActive, models.StatusPublished, false},
		{models.StatusReadyToDraw, models.StatusFinished, true},
		{models.StatusReadyToDraw, models.StatusActive, false},
		{models.StatusFinished, models.StatusCancelled, false},
		{models.StatusFinished, models.StatusFinished, false},
		{models.StatusCancelled, models.StatusPublished, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCreateRaffle(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	capacity := 10
	r, err := e.CreateRaffle(ctx, NewRaffle{Title: "Door prize", OwnerName: "Dana", Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, r.Status)

	stored, err := e.GetRaffle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Door prize", stored.Title)
	require.NotNil(t, stored.Capacity)
	assert.Equal(t, 10, *stored.Capacity)
	assert.Nil(t, stored.CommitmentHash)
	assert.Nil(t, stored.DrawAt)
}

func TestCreateRaffle_InvalidCapacity(t *testing.T) {
	e, _ := newTestEngine(t)

	one := 1
	_, err := e.CreateRaffle(context.Background(), NewRaffle{Title: "Tiny", OwnerName: "Dana", Capacity: &one})
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.True(t, IsValidation(err))
}

func TestPublishAndCancel(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	r, err := e.CreateRaffle(ctx, NewRaffle{Title: "Raffle", OwnerName: "Dana"})
	require.NoError(t, err)

	require.NoError(t, e.Publish(ctx, r.ID, "slug-1"))
	assert.ErrorIs(t, e.Publish(ctx, r.ID, "slug-2"), ErrInvalidState)

	bySlug, err := e.GetRaffleBySlug(ctx, "slug-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, bySlug.Status)

	require.NoError(t, e.Cancel(ctx, r.ID))
	assert.ErrorIs(t, e.Cancel(ctx, r.ID), ErrInvalidState)

	_, err = e.RecordParticipation(ctx, Entry{RaffleID: r.ID, HolderName: "Ann"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPublish_NotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Publish(context.Background(), "missing", "slug"), ErrRaffleNotFound)
}

func TestRecordParticipation(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	cfg := testutil.GetTestConfig()
	raffleID, _, _ := testutil.CreateTestRaffle(t, conn, cfg, models.StatusPublished, 0)

	first, err := e.RecordParticipation(ctx, Entry{RaffleID: raffleID, HolderName: "Ann", HolderToken: "tok-ann"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, first.Status)
	assert.Equal(t, 1, first.ParticipantCount)
	assert.True(t, strings.HasPrefix(first.TicketCode, "T-"))
	assert.False(t, first.CapacityReached)

	second, err := e.RecordParticipation(ctx, Entry{RaffleID: raffleID, HolderName: "Bob", TicketCode: " T-CUSTOM "})
	require.NoError(t, err)
	assert.Equal(t, "T-CUSTOM", second.TicketCode)
	assert.Equal(t, 2, second.ParticipantCount)

	_, err = e.RecordParticipation(ctx, Entry{RaffleID: raffleID, HolderName: "Eve", TicketCode: "T-CUSTOM"})
	assert.ErrorIs(t, err, ErrDuplicateTicket)

	// The rejected entry must not leave a claimed slot behind.
	r, err := e.GetRaffle(ctx, raffleID)
	require.NoError(t, err)
	assert.Equal(t, 2, r.ParticipantCount)

	entries, err := listEntries(ctx, conn, raffleID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ParticipationID, entries[0].ParticipationID)
	assert.Equal(t, second.ParticipationID, entries[1].ParticipationID)

	mine, err := e.ParticipationByToken(ctx, raffleID, "tok-ann")
	require.NoError(t, err)
	assert.Equal(t, first.ParticipationID, mine.Participation.ID)
	assert.Equal(t, "Ann", mine.HolderName)

	_, err = e.ParticipationByToken(ctx, raffleID, "nope")
	assert.ErrorIs(t, err, ErrParticipationNotFound)
}

func TestRecordParticipation_CapacityTrigger(t *testing.T) {
	e, conn := newTestEngine(t, WithCountdown(2*time.Minute))
	ctx := context.Background()
	cfg := testutil.GetTestConfig()
	raffleID, _, _ := testutil.CreateTestRaffle(t, conn, cfg, models.StatusPublished, 2)

	_, err := e.RecordParticipation(ctx, Entry{RaffleID: raffleID, HolderName: "Ann"})
	require.NoError(t, err)

	last, err := e.RecordParticipation(ctx, Entry{RaffleID: raffleID, HolderName: "Bob"})
	require.NoError(t, err)
	assert.True(t, last.CapacityReached)
	assert.Equal(t, models.StatusReadyToDraw, last.Status)
	require.NotNil(t, last.DrawAt)
	assert.True(t, last.DrawAt.Equal(testNow.Add(2*time.Minute)))

	r, err := e.GetRaffle(ctx, raffleID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyToDraw, r.Status)
	require.NotNil(t, r.CommitmentHash, "commitment is fixed when the set freezes")
	require.NotNil(t, r.CommitmentSecret)
	assert.NoError(t, draw.VerifyCommitment(*r.CommitmentSecret, *r.CommitmentHash))

	_, err = e.RecordParticipation(ctx, Entry{RaffleID: raffleID, HolderName: "Late"})
	assert.ErrorIs(t, err, ErrRaffleFull)
}

func TestRecordParticipation_InvalidTicketCode(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	seedRaffle(t, conn, "R-codes", models.StatusActive, testEntries("C", 1))

	tests := []struct {
		name string
		code string
	}{
		{"separator", "T|0002"},
		{"separator only", "|"},
		{"too long", strings.Repeat("x", MaxTicketCodeLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RecordParticipation(ctx, Entry{RaffleID: "R-codes", HolderName: "Mallory", TicketCode: tt.code})
			assert.ErrorIs(t, err, ErrInvalidTicketCode)
			assert.True(t, IsValidation(err))
		})
	}

	// Refused codes never claim a slot.
	r, err := e.GetRaffle(ctx, "R-codes")
	require.NoError(t, err)
	assert.Equal(t, 1, r.ParticipantCount)

	res, err := e.RecordParticipation(ctx, Entry{RaffleID: "R-codes", HolderName: "Max", TicketCode: strings.Repeat("x", MaxTicketCodeLen)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ParticipantCount)
}

func TestIsUniqueViolation(t *testing.T) {
	_, conn := newTestEngine(t)
	seedRaffle(t, conn, "R-uniq", models.StatusActive, testEntries("U", 1))

	// A second ticket with the same code in the same raffle, as a racing
	// entry would write it after both passed the existence check.
	_, err := conn.Exec(`
		INSERT INTO ticket (id, raffle_id, code, holder_name, holder_token, created_at)
		VALUES ('racer', 'R-uniq', 'T-0001', 'Racer', 'token-racer', $1)
	`, testNow)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.True(t, isUniqueViolation(fmt.Errorf("failed to insert ticket: %w", err)))

	_, err = conn.Exec(`INSERT INTO ticket (id) VALUES ('missing-columns')`)
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err))

	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}

func TestSchedule(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	seedRaffle(t, conn, "R-sched", models.StatusActive, testEntries("S", 3))

	res, err := e.Schedule(ctx, "R-sched", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyToDraw, res.Status)
	assert.True(t, res.DrawAt.Equal(testNow.Add(10*time.Minute)))
	assert.True(t, strings.HasPrefix(res.CommitmentHash, draw.HashPrefix))

	// Rescheduling keeps the commitment.
	again, err := e.Schedule(ctx, "R-sched", 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, res.CommitmentHash, again.CommitmentHash)

	// Entries are frozen once scheduled.
	_, err = e.RecordParticipation(ctx, Entry{RaffleID: "R-sched", HolderName: "Late"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.Schedule(ctx, "R-sched", 0)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestSchedule_NotEnoughParticipants(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	seedRaffle(t, conn, "R-empty", models.StatusPublished, nil)
	seedRaffle(t, conn, "R-one", models.StatusActive, testEntries("O", 1))

	_, err := e.Schedule(ctx, "R-empty", time.Minute)
	assert.ErrorIs(t, err, ErrNotEnoughParticipants)

	_, err = e.Schedule(ctx, "R-one", time.Minute)
	assert.ErrorIs(t, err, ErrNotEnoughParticipants)
	assert.True(t, IsValidation(err))

	// The refusal leaves the raffle open and without a commitment.
	r, err := e.GetRaffle(ctx, "R-one")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, r.Status)
	assert.Nil(t, r.DrawAt)
	assert.Nil(t, r.CommitmentHash)

	_, err = e.RecordParticipation(ctx, Entry{RaffleID: "R-one", HolderName: "Second", TicketCode: "T-0002"})
	require.NoError(t, err)

	res, err := e.Schedule(ctx, "R-one", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyToDraw, res.Status)
}

func TestSchedule_InvalidStates(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	seedRaffle(t, conn, "R-draft", models.StatusDraft, nil)
	seedRaffle(t, conn, "R-cancelled", models.StatusCancelled, testEntries("C", 2))

	_, err := e.Schedule(ctx, "R-draft", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.Schedule(ctx, "R-cancelled", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.Schedule(ctx, "missing", time.Minute)
	assert.ErrorIs(t, err, ErrRaffleNotFound)
}

func TestEnsureCommitment_Idempotent(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	seedRaffle(t, conn, "R-commit", models.StatusActive, testEntries("K", 2))

	first, err := e.EnsureCommitment(ctx, "R-commit")
	require.NoError(t, err)
	assert.Len(t, first.Secret, 2*draw.SecretBytes)

	second, err := e.EnsureCommitment(ctx, "R-commit")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureCommitment_Tampered(t *testing.T) {
	e, conn := newTestEngine(t)
	ctx := context.Background()
	seedRaffle(t, conn, "R-tamper", models.StatusActive, testEntries("X", 2))
	setCommitment(t, conn, "R-tamper", goldenSecret)

	_, err := conn.Exec(`UPDATE raffle SET commitment_secret = 'forged' WHERE id = 'R-tamper'`)
	require.NoError(t, err)

	_, err = e.EnsureCommitment(ctx, "R-tamper")
	assert.ErrorIs(t, err, ErrCommitmentIntegrity)
	assert.False(t, IsValidation(err))

	// The stored hash is never replaced.
	r, err := e.GetRaffle(ctx, "R-tamper")
	require.NoError(t, err)
	assert.Equal(t, draw.HashSecret(goldenSecret), *r.CommitmentHash)
}

func TestEnsureCommitment_Partial(t *testing.T) {
	e, conn := newTestEngine(t)
	seedRaffle(t, conn, "R-partial", models.StatusActive, testEntries("Y", 2))

	_, err := conn.Exec(`UPDATE raffle SET commitment_hash = $1 WHERE id = 'R-partial'`, draw.HashSecret("x"))
	require.NoError(t, err)

	_, err = e.EnsureCommitment(context.Background(), "R-partial")
	assert.ErrorIs(t, err, ErrCommitmentIntegrity)
}
