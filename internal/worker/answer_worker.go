package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

const (
	AnswerBatchSize    = 100
	AnswerBatchTimeout = 2 * time.Second
	AnswerPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AnswerPersister is the durable answer store. Implemented by
// repository.AnswerRepository.
type AnswerPersister interface {
	UpsertBatch(ctx context.Context, drafts []repository.AnswerDraft) error
	Upsert(ctx context.Context, d repository.AnswerDraft) error
}

// AnswerWorker drains the persist queue filled by the answer buffer and
// UPSERTs answers into attempt_answers in batches.
type AnswerWorker struct {
	store AnswerPersister
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(store AnswerPersister, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]repository.AnswerDraft, 0, AnswerBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AnswerBatchSize || time.Since(lastFlush) >= AnswerBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			item, err := w.rdb.BLPop(ctx, AnswerPollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var d repository.AnswerDraft
			if err := json.Unmarshal([]byte(item[1]), &d); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, d)
		}
	}
}

// flushSafe writes a batch, falling back to row-by-row writes and requeueing
// whatever still fails.
func (w *AnswerWorker) flushSafe(ctx context.Context, batch []repository.AnswerDraft) {
	if len(batch) == 0 {
		return
	}

	if err := w.store.UpsertBatch(ctx, batch); err == nil {
		return
	} else {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Batch upsert failed, using fallback")
	}

	for _, d := range batch {
		if err := w.store.Upsert(ctx, d); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", d.AttemptID.String()).
				Str("question_id", d.QuestionID.String()).
				Msg("Upsert failed, requeueing")
			raw, _ := json.Marshal(d)
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
		}
	}
}

// drain persists whatever is left in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	var pending []repository.AnswerDraft
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		var d repository.AnswerDraft
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}
		pending = append(pending, d)
	}

	if len(pending) > 0 {
		w.flushSafe(ctx, pending)
		w.log.Info().Int("count", len(pending)).Msg("Drained remaining items")
	}
}
