package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SweepBatchSize caps how many attempts one sweep touches.
const SweepBatchSize = 200

// AttemptSweeper enforces deadlines and idle expiry server-side.
// Implemented by service.AttemptService.
type AttemptSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
	SweepAbandoned(ctx context.Context, limit int) (int, error)
	RecoverSubmitted(ctx context.Context, limit int) (int, error)
}

// DeadlineWorker periodically force-submits expired attempts, abandons idle
// untimed ones and rescores attempts stuck in SUBMITTED.
type DeadlineWorker struct {
	sweeper  AttemptSweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(sweeper AttemptSweeper, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		sweeper:  sweeper,
		interval: interval,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start runs sweeps until ctx is cancelled. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	run := func(name string, fn func(context.Context, int) (int, error)) {
		n, err := fn(ctx, SweepBatchSize)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Str("sweep", name).Msg("Sweep failed")
			}
			return
		}
		if n > 0 {
			w.log.Info().Str("sweep", name).Int("count", n).Msg("Sweep applied")
		}
	}

	run("expired", w.sweeper.SweepExpired)
	run("abandoned", w.sweeper.SweepAbandoned)
	run("stuck_submitted", w.sweeper.RecoverSubmitted)
}
