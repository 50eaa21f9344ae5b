package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/lock"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/scoring"
)

// Grader identifies the instructor acting on the grading queue.
type Grader struct {
	UserID int
	// GradeAll bypasses assessment ownership.
	GradeAll bool
}

// GradingService is the manual grading queue. The queue itself is a query
// over attempt status; nothing is held here.
type GradingService struct {
	attempts    AttemptStore
	assessments AssessmentSource
	locker      lock.Locker
	fin         *finalizer
	now         func() time.Time
	log         zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	attempts AttemptStore,
	assessments AssessmentSource,
	locker lock.Locker,
	publisher *PointsPublisher,
	log zerolog.Logger,
) *GradingService {
	log = log.With().Str("component", "grading_service").Logger()
	return &GradingService{
		attempts:    attempts,
		assessments: assessments,
		locker:      locker,
		fin:         &finalizer{attempts: attempts, publisher: publisher, now: time.Now, log: log},
		now:         time.Now,
		log:         log,
	}
}

// Queue lists attempts awaiting manual grading that the grader may act on.
func (s *GradingService) Queue(ctx context.Context, g Grader, f model.GradingQueueFilter) ([]model.PendingAttempt, int64, error) {
	f.InstructorID = g.UserID
	if g.GradeAll {
		f.InstructorID = 0
	}
	pending, total, err := s.attempts.ListPending(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending attempts: %w", err)
	}
	return pending, total, nil
}

// Detail returns an attempt with every result and the answer key.
func (s *GradingService) Detail(ctx context.Context, g Grader, attemptID uuid.UUID) (*AttemptView, error) {
	a, err := loadAttempt(ctx, s.attempts, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, g, a.AssessmentID); err != nil {
		return nil, err
	}

	results, err := s.attempts.ListQuestionAttempts(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list question attempts: %w", err)
	}
	return buildView(a, results, nil, instructorVisibility()), nil
}

// GradeQuestion records an instructor's points and feedback for one question.
// The attempt is finalized as soon as no question awaits a grade; grading an
// already GRADED attempt recomputes its verdict.
func (s *GradingService) GradeQuestion(ctx context.Context, g Grader, attemptID, questionID uuid.UUID, points float64, feedback *string) (*AttemptView, error) {
	if math.IsNaN(points) || math.IsInf(points, 0) || points < 0 {
		return nil, ErrInvalidPoints
	}

	var (
		out     *model.Attempt
		results []model.QuestionAttempt
	)
	err := withAttemptLock(ctx, s.locker, s.attempts, attemptID, func(a *model.Attempt) error {
		if err := s.authorize(ctx, g, a.AssessmentID); err != nil {
			return err
		}
		if a.Status != model.AttemptStatusPendingManualGrading && a.Status != model.AttemptStatusGraded {
			return ErrAttemptNotGradable
		}

		var err error
		results, err = s.attempts.ListQuestionAttempts(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("list question attempts: %w", err)
		}

		idx := -1
		for i := range results {
			if results[i].QuestionID == questionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrQuestionNotFound
		}

		qa := &results[idx]
		if points > float64(qa.MaxPoints) {
			return ErrInvalidPoints
		}

		now := s.now()
		full := points == float64(qa.MaxPoints)
		graderID := g.UserID
		qa.PointsEarned = points
		qa.IsCorrect = &full
		qa.InstructorFeedback = feedback
		qa.GradedBy = &graderID
		qa.GradedAt = &now

		wasPassed := a.Passed != nil && *a.Passed
		wasGraded := a.Status == model.AttemptStatusGraded

		if err := s.fin.apply(ctx, a, scoring.Retally(results, a.TotalPoints)); err != nil {
			return err
		}
		metrics.ManualGrades.Inc()

		log := s.log.Info().
			Str("attempt_id", a.ID.String()).
			Str("question_id", questionID.String()).
			Int("grader_id", g.UserID).
			Float64("points", points)
		if wasGraded && a.Passed != nil && *a.Passed != wasPassed {
			log = log.Bool("passed", *a.Passed).Bool("verdict_changed", true)
		}
		log.Msg("Question graded")

		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildView(out, results, nil, instructorVisibility()), nil
}

func (s *GradingService) authorize(ctx context.Context, g Grader, assessmentID uuid.UUID) error {
	assessment, err := s.assessments.Get(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) && g.GradeAll {
			return nil
		}
		return err
	}
	if !g.GradeAll && assessment.InstructorID != g.UserID {
		return ErrUnauthorized
	}
	return nil
}
