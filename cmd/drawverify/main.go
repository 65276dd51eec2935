// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command drawverify replays a published raffle draw offline.
//
// Everything it needs is public once a raffle is finished: the raffle id,
// the draw moment, the ordered entries, the revealed secret and the hash
// that was published before the draw.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitOK       = 0
	exitMismatch = 1 // replay disagrees with the published draw
	exitUsage    = 2 // bad flags or unreadable input
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra's own flag and argument errors
	return exitUsage
}

type rootOptions struct {
	format string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "drawverify",
		Short: "Replay and verify quickly-draw raffle draws",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return usageError("invalid format %q: must be text or json", opts.format)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))

	return cmd
}

func main() {
	err := newRootCommand().Execute()
	os.Exit(exitCode(err))
}
