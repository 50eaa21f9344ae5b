package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// answerBufferTTL bounds how long an untouched buffer survives in Redis.
const answerBufferTTL = 72 * time.Hour

// AnswerStore is the durable copy of buffered answers.
type AnswerStore interface {
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) (model.Answers, error)
}

// AnswerBuffer keeps in-progress answers in a Redis hash and queues each write
// for asynchronous persistence to PostgreSQL.
type AnswerBuffer struct {
	rdb   *redis.Client
	store AnswerStore
}

// NewAnswerBuffer creates an AnswerBuffer that falls back to store on reads.
func NewAnswerBuffer(rdb *redis.Client, store AnswerStore) *AnswerBuffer {
	return &AnswerBuffer{rdb: rdb, store: store}
}

// Save overwrites the answer for one question.
func (b *AnswerBuffer) Save(ctx context.Context, attemptID, questionID uuid.UUID, value json.RawMessage) error {
	payload, err := json.Marshal(repository.AnswerDraft{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Answer:     value,
	})
	if err != nil {
		return err
	}

	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID.String(), string(value))
	pipe.Expire(ctx, key, answerBufferTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns every answer recorded for the attempt. Persisted answers are
// overlaid with the buffer, which is never older than the database copy.
func (b *AnswerBuffer) Load(ctx context.Context, attemptID uuid.UUID) (model.Answers, error) {
	answers, err := b.store.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = make(model.Answers)
	}

	buffered, err := b.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, err
	}
	for qid, raw := range buffered {
		id, err := uuid.Parse(qid)
		if err != nil {
			continue
		}
		answers[id] = json.RawMessage(raw)
	}
	return answers, nil
}

// Clear drops the buffer once answers are frozen on the attempt.
func (b *AnswerBuffer) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return b.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Err()
}
