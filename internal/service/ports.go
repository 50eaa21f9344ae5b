package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AttemptStore persists attempts and their per-question results.
// Implemented by repository.AttemptRepository.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListByUserAndAssessment(ctx context.Context, userID int, assessmentID uuid.UUID) ([]model.Attempt, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkSubmitted(ctx context.Context, a *model.Attempt) (bool, error)
	SaveScores(ctx context.Context, a *model.Attempt, results []model.QuestionAttempt, award *model.PointAward) (bool, error)
	ListQuestionAttempts(ctx context.Context, attemptID uuid.UUID) ([]model.QuestionAttempt, error)
	Abandon(ctx context.Context, id uuid.UUID) (bool, error)
	ListPending(ctx context.Context, f model.GradingQueueFilter) ([]model.PendingAttempt, int64, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListStaleUntimed(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ListStuckSubmitted(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// AnswerBuffer holds answers while an attempt is IN_PROGRESS.
// Implemented by cache.AnswerBuffer.
type AnswerBuffer interface {
	Save(ctx context.Context, attemptID, questionID uuid.UUID, value json.RawMessage) error
	Load(ctx context.Context, attemptID uuid.UUID) (model.Answers, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// AssessmentSource fetches read-only assessment definitions.
// Implemented by AssessmentService.
type AssessmentSource interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
}

// AssessmentLoader reads the catalog. Implemented by repository.AssessmentRepository.
type AssessmentLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
}

// AssessmentCacher stores definitions. Implemented by cache.AssessmentCache.
type AssessmentCacher interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	Set(ctx context.Context, a *model.Assessment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ledger receives point award events. Implemented by cache.LedgerQueue.
type Ledger interface {
	Publish(ctx context.Context, event model.PointAwardEvent) error
}

// AwardStore is the point award outbox. Implemented by repository.AwardRepository.
type AwardStore interface {
	ListUnpublished(ctx context.Context, cutoff time.Time, limit int) ([]model.PointAward, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
