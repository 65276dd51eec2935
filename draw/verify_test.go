// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedAudit(t *testing.T) Audit {
	t.Helper()
	c, err := NewCommitment()
	require.NoError(t, err)

	in := Input{
		RaffleID: "R9",
		Moment:   time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		Entries:  entries(6),
		Secret:   c.Secret,
	}
	out, err := Run(in)
	require.NoError(t, err)

	return Audit{
		RaffleID:       in.RaffleID,
		Moment:         in.Moment,
		Entries:        in.Entries,
		Secret:         c.Secret,
		CommitmentHash: FormatHash(c.Hash),
		Shuffled:       out.Shuffled,
		Ranking:        out.Ranking,
		WinnerID:       out.WinnerID,
	}
}

func TestVerify_Valid(t *testing.T) {
	assert.NoError(t, Verify(publishedAudit(t)))
}

func TestVerify_DetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Audit)
	}{
		{"secret", func(a *Audit) { a.Secret = a.Secret + "0" }},
		{"hash", func(a *Audit) { a.CommitmentHash = FormatHash(HashSecret("other")) }},
		{"winner", func(a *Audit) { a.WinnerID = a.Ranking[1] }},
		{"ranking", func(a *Audit) {
			a.Ranking = slices.Clone(a.Ranking)
			a.Ranking[1], a.Ranking[2] = a.Ranking[2], a.Ranking[1]
		}},
		{"moment", func(a *Audit) { a.Moment = a.Moment.Add(time.Minute) }},
		{"ticket codes", func(a *Audit) {
			a.Entries = slices.Clone(a.Entries)
			a.Entries[0].TicketCode = "FORGED"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := publishedAudit(t)
			// A different seed can still land on the same order by chance.
			var err error
			for i := 0; i < 5 && err == nil; i++ {
				if i > 0 {
					a = publishedAudit(t)
				}
				tt.mutate(&a)
				err = Verify(a)
			}
			require.Error(t, err)
			assert.True(t, IsMismatch(err), "unexpected error kind: %v", err)
		})
	}
}
