// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quickly-draw/models"
	"github.com/danielhkuo/quickly-draw/testutil"
)

// TestConcurrentExecute verifies that a draw raced by many callers is
// persisted exactly once and every caller sees the same winner.
func TestConcurrentExecute(t *testing.T) {
	e, conn := newTestEngine(t)
	seedRaffle(t, conn, "R-race", models.StatusReadyToDraw, testEntries("R", 6))

	const callers = 12
	var fresh, already atomic.Int32
	winners := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// Alternate moments: whichever caller wins, the loser must not
			// overwrite it with its own outcome.
			moment := testNow.Add(time.Duration(idx%2) * time.Hour)
			res, err := e.Execute(context.Background(), "R-race", moment, ExecuteOptions{AutoCommit: true})
			if errors.Is(err, ErrAlreadyExecuted) {
				already.Add(1)
				err = nil
			}
			errs[idx] = err
			if res != nil {
				winners[idx] = res.WinnerID
				if res.Fresh {
					fresh.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), fresh.Load(), "exactly one caller finalizes")

	r, err := e.GetRaffle(context.Background(), "R-race")
	require.NoError(t, err)
	require.NotNil(t, r.WinningParticipationID)
	for i, w := range winners {
		assert.Equal(t, *r.WinningParticipationID, w, "caller %d", i)
	}

	var results, winnersMarked int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM draw_result WHERE raffle_id = 'R-race'`).Scan(&results))
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM participation WHERE raffle_id = 'R-race' AND is_winner`).Scan(&winnersMarked))
	assert.Equal(t, 1, results)
	assert.Equal(t, 1, winnersMarked)
}

// TestConcurrentEntries_CapacityTrigger verifies that entries racing for the
// last slot fill the raffle exactly and trigger the draw exactly once.
func TestConcurrentEntries_CapacityTrigger(t *testing.T) {
	e, conn := newTestEngine(t)
	cfg := testutil.GetTestConfig()
	raffleID, _, _ := testutil.CreateTestRaffle(t, conn, cfg, models.StatusPublished, 3)

	const entrants = 10
	var accepted, full, triggered atomic.Int32
	var unexpected sync.Map

	var wg sync.WaitGroup
	for i := 0; i < entrants; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := e.RecordParticipation(context.Background(), Entry{
				RaffleID:   raffleID,
				HolderName: fmt.Sprintf("Holder%d", idx),
				TicketCode: fmt.Sprintf("T-%04d", idx),
			})
			switch {
			case err == nil:
				accepted.Add(1)
				if res.CapacityReached {
					triggered.Add(1)
				}
			case errors.Is(err, ErrRaffleFull):
				full.Add(1)
			default:
				unexpected.Store(idx, err)
			}
		}(i)
	}
	wg.Wait()

	unexpected.Range(func(k, v any) bool {
		t.Errorf("entrant %v: unexpected error %v", k, v)
		return true
	})
	assert.Equal(t, int32(3), accepted.Load())
	assert.Equal(t, int32(entrants-3), full.Load())
	assert.Equal(t, int32(1), triggered.Load(), "capacity trigger fires once")

	r, err := e.GetRaffle(context.Background(), raffleID)
	require.NoError(t, err)
	assert.Equal(t, 3, r.ParticipantCount)
	assert.Equal(t, models.StatusReadyToDraw, r.Status)
	require.NotNil(t, r.DrawAt)
	assert.NotNil(t, r.CommitmentHash)

	parts, err := e.ListParticipations(context.Background(), raffleID)
	require.NoError(t, err)
	assert.Len(t, parts, 3)
}

// TestConcurrentLazyReads verifies that readers arriving after the draw
// time all observe one persisted result.
func TestConcurrentLazyReads(t *testing.T) {
	e, conn := newTestEngine(t)
	seedRaffle(t, conn, "R-lazy", models.StatusReadyToDraw, testEntries("Z", 5))
	setDrawAt(t, conn, "R-lazy", testNow.Add(-time.Second))

	const readers = 8
	winners := make([]string, readers)

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			st, err := e.GetDrawStatus(context.Background(), "R-lazy")
			if assert.NoError(t, err) && assert.NotNil(t, st.Result) {
				winners[idx] = st.Result.WinnerID
			}
		}(i)
	}
	wg.Wait()

	for _, w := range winners {
		assert.Equal(t, winners[0], w)
	}
	assert.NotEmpty(t, winners[0])
}
