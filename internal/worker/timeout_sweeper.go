// Package worker holds background jobs that run alongside the HTTP server.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/civitest/civitest-backend/internal/config"
	"github.com/civitest/civitest-backend/internal/timer"
	"github.com/go-co-op/gocron"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExpiredSweeper is the store operation the sweeper drives. Satisfied by
// repository.SessionRepository.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// TimeoutSweeper periodically flips abandoned IN_PROGRESS sessions to
// TIMEOUT once their grace window lapses. Mutating calls already perform
// the same transition lazily; the sweeper only catches sessions nobody
// touches again, so reads and reports never see a stale IN_PROGRESS.
type TimeoutSweeper struct {
	sessions  ExpiredSweeper
	rdb       *redis.Client
	clock     timer.Clock
	interval  time.Duration
	scheduler *gocron.Scheduler
	log       zerolog.Logger
}

// NewTimeoutSweeper creates a new TimeoutSweeper. rdb may be nil; the
// sweep then runs without the cross-instance lease.
func NewTimeoutSweeper(sessions ExpiredSweeper, rdb *redis.Client, clock timer.Clock, interval time.Duration, log zerolog.Logger) *TimeoutSweeper {
	return &TimeoutSweeper{
		sessions:  sessions,
		rdb:       rdb,
		clock:     clock,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log.With().Str("component", "timeout_sweeper").Logger(),
	}
}

// Start registers the sweep job and runs the scheduler in the background.
func (w *TimeoutSweeper) Start(ctx context.Context) error {
	_, err := w.scheduler.Every(w.interval).Do(func() {
		w.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	w.scheduler.StartAsync()
	w.log.Info().Dur("interval", w.interval).Msg("timeout sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (w *TimeoutSweeper) Stop() {
	w.scheduler.Stop()
	w.log.Info().Msg("timeout sweeper stopped")
}

// sweep runs one pass. A short-lived Redis lease keeps concurrent
// instances from sweeping the same rows at the same time; the UPDATE is
// conditional either way, so losing the lease race is only wasted work.
func (w *TimeoutSweeper) sweep(ctx context.Context) {
	if w.rdb != nil {
		acquired, err := w.rdb.SetNX(ctx, config.CacheKey.SweepLeaseKey(), 1, w.interval).Result()
		if err != nil {
			w.log.Warn().Err(err).Msg("sweep lease check failed, sweeping anyway")
		} else if !acquired {
			return
		}
	}

	swept, err := w.sessions.SweepExpired(ctx, w.clock.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if swept > 0 {
		w.log.Info().Int64("sessions", swept).Msg("expired sessions timed out")
	}
}
