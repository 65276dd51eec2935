// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/quickly-draw/draw"
)

type replayOptions struct {
	*rootOptions
	raffleID     string
	moment       string
	secret       string
	hash         string
	entries      []string
	expectWinner string
}

// replayReport is what replay and check print.
type replayReport struct {
	RaffleID       string   `json:"raffle_id"`
	Moment         string   `json:"moment"`
	CommitmentHash string   `json:"commitment_hash,omitempty"`
	Shuffled       []string `json:"shuffled"`
	Ranking        []string `json:"ranking"`
	WinnerID       string   `json:"winner_id"`
	Verified       bool     `json:"verified"`
	Error          string   `json:"error,omitempty"`
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute a draw from its published inputs",
		Long: `Recompute the elimination order, ranking and winner of a draw.

When --hash is given the secret is checked against it first and a mismatch
fails the command. --expect-winner additionally fails when the recomputed
winner differs.

Example:
  drawverify replay --raffle R1 --moment 2024-01-01T00:00:00Z \
    --secret <hex> --hash sha256:<hex> \
    --entry P1=T-0001 --entry P2=T-0002`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.raffleID, "raffle", "", "raffle id (required)")
	cmd.Flags().StringVar(&opts.moment, "moment", "", "draw moment, RFC 3339 (required)")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "revealed commitment secret (required)")
	cmd.Flags().StringVar(&opts.hash, "hash", "", "published commitment hash")
	cmd.Flags().StringArrayVar(&opts.entries, "entry", nil, "participation as ID=TICKET_CODE, in entry order (repeatable)")
	cmd.Flags().StringVar(&opts.expectWinner, "expect-winner", "", "fail unless this participation wins")
	_ = cmd.MarkFlagRequired("raffle")
	_ = cmd.MarkFlagRequired("moment")
	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("entry")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *replayOptions) error {
	moment, err := time.Parse(time.RFC3339, opts.moment)
	if err != nil {
		return usageError("invalid --moment: %v", err)
	}

	entries, err := parseEntries(opts.entries)
	if err != nil {
		return err
	}

	if opts.hash != "" {
		if _, err := draw.ParseHash(opts.hash); err != nil {
			return usageError("invalid --hash: %v", err)
		}
	}

	in := draw.Input{
		RaffleID: opts.raffleID,
		Moment:   moment,
		Entries:  entries,
		Secret:   opts.secret,
	}
	report := replayReport{
		RaffleID:       opts.raffleID,
		Moment:         draw.FormatMoment(moment),
		CommitmentHash: opts.hash,
	}

	var verifyErr error
	if opts.hash != "" {
		verifyErr = draw.VerifyCommitment(opts.secret, opts.hash)
	}
	out, err := draw.Run(in)
	if err != nil {
		return usageError("replay failed: %v", err)
	}
	report.Shuffled = out.Shuffled
	report.Ranking = out.Ranking
	report.WinnerID = out.WinnerID

	if verifyErr == nil && opts.expectWinner != "" && opts.expectWinner != out.WinnerID {
		verifyErr = &draw.MismatchError{Field: "winner", Want: opts.expectWinner, Got: out.WinnerID}
	}

	return finish(cmd.OutOrStdout(), opts.format, report, verifyErr)
}

// parseEntries reads ID=CODE pairs. Ticket codes may not contain the seed
// separator.
func parseEntries(raw []string) ([]draw.Entry, error) {
	entries := make([]draw.Entry, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		id, code, ok := strings.Cut(s, "=")
		if !ok || id == "" || code == "" {
			return nil, usageError("invalid --entry %q: want ID=TICKET_CODE", s)
		}
		if strings.Contains(code, "|") {
			return nil, usageError("invalid --entry %q: ticket code may not contain '|'", s)
		}
		if seen[id] {
			return nil, usageError("duplicate participation %q", id)
		}
		seen[id] = true
		entries = append(entries, draw.Entry{ParticipationID: id, TicketCode: code})
	}
	if len(entries) < draw.MinParticipants {
		return nil, usageError("at least %d entries are required, got %d", draw.MinParticipants, len(entries))
	}
	return entries, nil
}

// finish prints the report and turns a verification failure into exit 1.
func finish(w io.Writer, format string, report replayReport, verifyErr error) error {
	report.Verified = verifyErr == nil && report.CommitmentHash != ""
	if verifyErr != nil {
		report.Error = verifyErr.Error()
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return usageError("failed to write output: %v", err)
		}
	} else {
		writeText(w, report)
	}

	if verifyErr != nil {
		return &exitError{code: exitMismatch, err: verifyErr}
	}
	return nil
}

func writeText(w io.Writer, r replayReport) {
	fmt.Fprintf(w, "Raffle:   %s\n", r.RaffleID)
	fmt.Fprintf(w, "Moment:   %s\n", r.Moment)
	if r.CommitmentHash != "" {
		fmt.Fprintf(w, "Hash:     %s\n", r.CommitmentHash)
	}
	fmt.Fprintln(w, "Ranking:")
	for i, id := range r.Ranking {
		fmt.Fprintf(w, "  %d. %s\n", i+1, id)
	}
	fmt.Fprintf(w, "Winner:   %s\n", r.WinnerID)

	switch {
	case r.Error != "":
		fmt.Fprintf(w, "MISMATCH: %s\n", r.Error)
	case r.Verified:
		fmt.Fprintln(w, "Verified: commitment matches")
	default:
		fmt.Fprintln(w, "Unverified: no commitment hash given")
	}
}
