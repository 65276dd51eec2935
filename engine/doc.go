// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine runs the raffle lifecycle and the draw on top of the database.

# Lifecycle

	draft -> published -> active -> ready_to_draw -> finished
	   \          \          \            \
	    +----------+----------+------------+--> cancelled

A raffle moves to ready_to_draw when it reaches capacity (the draw is then
scheduled Countdown after the last entry) or when an administrator
schedules it. Entries are refused from ready_to_draw on, which freezes the
participant set the commitment was published against.

# Triggers

A due draw is executed by whichever comes first:

  - a reader calling GetDrawStatus or EnsureFinalized (lazy execution)
  - the Scheduler sweep
  - an administrator calling Execute

All three go through Execute, which persists with a single conditional
UPDATE guarded by drawn_at IS NULL AND winning_participation_id IS NULL.
The engine keeps no lock in process memory, so any number of server
instances may share one database. The loser of a race re-reads and returns
the stored result.

# Notifications

After a fresh draw commits, the configured Notifier is called in a
background goroutine. Failures are logged and never roll back the draw. Use
Engine.Wait during shutdown to let queued notifications finish.
*/
package engine
