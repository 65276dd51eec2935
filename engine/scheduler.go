// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule is the cron spec used when none is configured.
const DefaultSweepSchedule = "@every 30s"

// sweepTimeout bounds one scheduled sweep.
const sweepTimeout = 2 * time.Minute

// Scheduler runs Sweep periodically. A tick that fires while the previous
// sweep is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
}

// NewScheduler validates spec and registers the sweep job.
func NewScheduler(e *Engine, spec string) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSweepSchedule
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Scheduler{cron: c, engine: e}
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.engine.Sweep(ctx); err != nil {
		slog.Error("scheduled sweep failed", "error", err)
	}
}

// Start begins running sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("draw sweep scheduler started", "entries", len(s.cron.Entries()))
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
