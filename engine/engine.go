// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// DefaultCountdown is the grace window between reaching capacity and the draw.
const DefaultCountdown = 5 * time.Minute

// DefaultSweepConcurrency bounds how many due raffles a sweep draws at once.
const DefaultSweepConcurrency = 4

// notifyTimeout bounds a single best-effort notification dispatch.
const notifyTimeout = 10 * time.Second

// maxDrawAttempts bounds retries when entries change underneath a draw.
const maxDrawAttempts = 3

// Engine owns the raffle lifecycle and the draw. It holds no lock of its
// own; every guard is a conditional write in the shared database.
type Engine struct {
	db               *sql.DB
	now              func() time.Time
	countdown        time.Duration
	sweepConcurrency int
	notifier         Notifier

	inflight sync.WaitGroup
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCountdown sets the grace window applied when capacity is reached.
func WithCountdown(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.countdown = d
		}
	}
}

// WithSweepConcurrency bounds parallel draws within one sweep.
func WithSweepConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sweepConcurrency = n
		}
	}
}

// WithNotifier sets the best-effort notification sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func New(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:               db,
		now:              time.Now,
		countdown:        DefaultCountdown,
		sweepConcurrency: DefaultSweepConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time in UTC.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
