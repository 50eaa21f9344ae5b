package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AnswerDraft is one buffered answer waiting to be persisted.
type AnswerDraft struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	QuestionID uuid.UUID       `json:"q_id"`
	Answer     json.RawMessage `json:"answer"`
}

// AnswerRepository persists in-progress answers so they survive a Redis loss.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes or overwrites one answer (last write wins).
func (r *AnswerRepository) Upsert(ctx context.Context, d AnswerDraft) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		d.AttemptID, d.QuestionID, nullableJSON(d.Answer),
	)
	return err
}

// UpsertBatch writes many answers with a single statement. Later entries for
// the same question win.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, drafts []AnswerDraft) error {
	if len(drafts) == 0 {
		return nil
	}

	// ON CONFLICT cannot touch the same row twice in one statement.
	type key struct{ attempt, question uuid.UUID }
	latest := make(map[key]int, len(drafts))
	for i, d := range drafts {
		latest[key{d.AttemptID, d.QuestionID}] = i
	}

	attemptIDs := make([]uuid.UUID, 0, len(latest))
	questionIDs := make([]uuid.UUID, 0, len(latest))
	answers := make([]string, 0, len(latest))
	for i, d := range drafts {
		if latest[key{d.AttemptID, d.QuestionID}] != i {
			continue
		}
		attemptIDs = append(attemptIDs, d.AttemptID)
		questionIDs = append(questionIDs, d.QuestionID)
		if len(d.Answer) == 0 {
			answers = append(answers, "null")
		} else {
			answers = append(answers, string(d.Answer))
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer)
		 SELECT u.attempt_id, u.question_id, u.answer::jsonb
		 FROM UNNEST($1::uuid[], $2::uuid[], $3::text[]) AS u(attempt_id, question_id, answer)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		attemptIDs, questionIDs, answers,
	)
	if err != nil {
		return fmt.Errorf("batch upsert answers: %w", err)
	}
	return nil
}

// ListByAttempt returns every persisted answer of an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) (model.Answers, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(model.Answers)
	for rows.Next() {
		var (
			qid    uuid.UUID
			answer []byte
		)
		if err := rows.Scan(&qid, &answer); err != nil {
			return nil, err
		}
		answers[qid] = json.RawMessage(answer)
	}
	return answers, rows.Err()
}
