package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RelayBatchSize caps how many awards one relay pass republishes.
const RelayBatchSize = 50

// AwardRelayer republishes recorded but unpublished point awards.
// Implemented by service.PointsPublisher.
type AwardRelayer interface {
	RelayPending(ctx context.Context, limit int) (int, error)
}

// AwardRelayWorker retries point award publication the synchronous path
// could not complete.
type AwardRelayWorker struct {
	relayer  AwardRelayer
	interval time.Duration
	log      zerolog.Logger
}

// NewAwardRelayWorker creates a new AwardRelayWorker.
func NewAwardRelayWorker(relayer AwardRelayer, interval time.Duration, log zerolog.Logger) *AwardRelayWorker {
	return &AwardRelayWorker{
		relayer:  relayer,
		interval: interval,
		log:      log.With().Str("component", "award_relay_worker").Logger(),
	}
}

// Start runs relay passes until ctx is cancelled. Call in a goroutine.
func (w *AwardRelayWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			// Keep relaying full batches until the backlog is gone.
			for {
				n, err := w.relayer.RelayPending(ctx, RelayBatchSize)
				if err != nil {
					if ctx.Err() == nil {
						w.log.Error().Err(err).Msg("Relay failed")
					}
					break
				}
				if n > 0 {
					w.log.Info().Int("count", n).Msg("Relayed point awards")
				}
				if n < RelayBatchSize {
					break
				}
			}
		}
	}
}
