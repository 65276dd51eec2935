// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/quickly-draw/draw"
	"github.com/danielhkuo/quickly-draw/models"
)

type checkOptions struct {
	*rootOptions
	file string
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	opts := &checkOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify a saved audit document",
		Long: `Verify the JSON returned by GET /raffles/{slug}/audit.

The commitment, the elimination order, the ranking and the winner are all
recomputed and compared. Reads stdin when --file is "-".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "audit JSON file, or - for stdin")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *checkOptions) error {
	var r io.Reader = cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return usageError("failed to open audit: %v", err)
		}
		defer f.Close()
		r = f
	}

	var doc models.AuditResponse
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return usageError("failed to parse audit: %v", err)
	}

	moment, err := time.Parse(time.RFC3339, doc.Moment)
	if err != nil {
		return usageError("invalid moment %q: %v", doc.Moment, err)
	}

	entries := make([]draw.Entry, len(doc.Entries))
	for i, en := range doc.Entries {
		entries[i] = draw.Entry{ParticipationID: en.ParticipationID, TicketCode: en.TicketCode}
	}
	ranking := make([]string, len(doc.Ranking))
	for i, re := range doc.Ranking {
		ranking[i] = re.ParticipationID
	}

	verifyErr := draw.Verify(draw.Audit{
		RaffleID:       doc.RaffleID,
		Moment:         moment,
		Entries:        entries,
		Secret:         doc.CommitmentSecret,
		CommitmentHash: doc.CommitmentHash,
		Shuffled:       doc.Shuffled,
		Ranking:        ranking,
		WinnerID:       doc.WinnerID,
	})

	report := replayReport{
		RaffleID:       doc.RaffleID,
		Moment:         draw.FormatMoment(moment),
		CommitmentHash: doc.CommitmentHash,
		Shuffled:       doc.Shuffled,
		Ranking:        ranking,
		WinnerID:       doc.WinnerID,
	}
	return finish(cmd.OutOrStdout(), opts.format, report, verifyErr)
}
