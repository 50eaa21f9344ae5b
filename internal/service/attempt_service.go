package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/grading"
	"github.com/stemsi/exstem-assessment/internal/lock"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/scoring"
)

// stuckSubmittedAfter is how long a SUBMITTED attempt may wait for scoring
// before recovery picks it up.
const stuckSubmittedAfter = time.Minute

// AttemptService owns the lifecycle of an attempt from start to submission.
type AttemptService struct {
	attempts     AttemptStore
	assessments  AssessmentSource
	buffer       AnswerBuffer
	locker       lock.Locker
	fin          *finalizer
	abandonGrace time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// NewAttemptService creates a new AttemptService. A zero abandonGrace keeps
// untimed attempts live forever.
func NewAttemptService(
	attempts AttemptStore,
	assessments AssessmentSource,
	buffer AnswerBuffer,
	locker lock.Locker,
	publisher *PointsPublisher,
	abandonGrace time.Duration,
	log zerolog.Logger,
) *AttemptService {
	log = log.With().Str("component", "attempt_service").Logger()
	return &AttemptService{
		attempts:     attempts,
		assessments:  assessments,
		buffer:       buffer,
		locker:       locker,
		fin:          &finalizer{attempts: attempts, publisher: publisher, now: time.Now, log: log},
		abandonGrace: abandonGrace,
		now:          time.Now,
		log:          log,
	}
}

// StartResult is returned when a learner starts or resumes an attempt.
type StartResult struct {
	AttemptID        uuid.UUID                  `json:"attempt_id"`
	AttemptNumber    int                        `json:"attempt_number"`
	Status           model.AttemptStatus        `json:"status"`
	StartedAt        time.Time                  `json:"started_at"`
	DeadlineAt       *time.Time                 `json:"deadline_at"`
	TimeLimitMinutes *int                       `json:"time_limit_minutes,omitempty"`
	TotalPoints      int                        `json:"total_points"`
	Questions        []model.QuestionForLearner `json:"questions"`
	Answers          model.Answers              `json:"answers,omitempty"`
	Resumed          bool                       `json:"resumed"`
}

func newStartResult(a *model.Attempt, answers model.Answers, resumed bool) *StartResult {
	return &StartResult{
		AttemptID:        a.ID,
		AttemptNumber:    a.AttemptNumber,
		Status:           a.Status,
		StartedAt:        a.StartedAt,
		DeadlineAt:       a.DeadlineAt,
		TimeLimitMinutes: a.TimeLimitMinutes,
		TotalPoints:      a.TotalPoints,
		Questions:        model.QuestionsForLearner(a.Questions),
		Answers:          answers,
		Resumed:          resumed,
	}
}

// ─── Start ──────────────────────────────────────────────────────────

// Start creates a new attempt, or resumes the learner's live one. Expired
// attempts are settled first so they never block a retry.
func (s *AttemptService) Start(ctx context.Context, userID int, assessmentID uuid.UUID) (*StartResult, error) {
	assessment, err := s.assessments.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, config.CacheKey.AttemptStartLockKey(assessmentID.String(), userID))
	if err != nil {
		return nil, fmt.Errorf("acquire start lock: %w", err)
	}
	defer release()

	existing, err := s.attempts.ListByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	counted := 0
	var live *model.Attempt
	for i := range existing {
		a := &existing[i]
		if a.IsActive() {
			if a, err = s.settle(ctx, a); err != nil {
				return nil, err
			}
		}
		if a.IsActive() {
			live = a
		}
		if a.CountsTowardLimit() {
			counted++
		}
	}

	if live != nil {
		answers, err := s.buffer.Load(ctx, live.ID)
		if err != nil {
			return nil, fmt.Errorf("load answers: %w", err)
		}
		return newStartResult(live, answers, true), nil
	}

	if assessment.MaxAttempts != nil && counted >= *assessment.MaxAttempts {
		return nil, ErrAttemptLimitExceeded
	}

	now := s.now()
	a := &model.Attempt{
		UserID:              userID,
		AssessmentID:        assessmentID,
		AttemptNumber:       len(existing) + 1,
		Status:              model.AttemptStatusInProgress,
		StartedAt:           now,
		LastActivityAt:      now,
		TimeLimitMinutes:    assessment.TimeLimitMinutes,
		TotalPoints:         assessment.TotalPoints(),
		PassingScorePercent: assessment.PassingScorePercent,
		PointsReward:        assessment.PointsReward,
		Questions:           slices.Clone(assessment.Questions),
	}
	if assessment.TimeLimitMinutes != nil {
		deadline := now.Add(time.Duration(*assessment.TimeLimitMinutes) * time.Minute)
		a.DeadlineAt = &deadline
	}

	if err := s.attempts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	metrics.AttemptsStarted.Inc()

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Int("user_id", userID).
		Str("assessment_id", assessmentID.String()).
		Int("attempt_number", a.AttemptNumber).
		Msg("Attempt started")

	return newStartResult(a, nil, false), nil
}

// settle applies server-side deadline and abandonment rules to a live attempt.
func (s *AttemptService) settle(ctx context.Context, a *model.Attempt) (*model.Attempt, error) {
	now := s.now()
	switch {
	case a.Expired(now):
		return s.SubmitOnDeadline(ctx, a.ID)
	case s.isStale(a, now):
		return s.abandon(ctx, a.ID)
	default:
		return a, nil
	}
}

func (s *AttemptService) isStale(a *model.Attempt, now time.Time) bool {
	return s.abandonGrace > 0 &&
		a.IsActive() &&
		a.DeadlineAt == nil &&
		now.Sub(a.LastActivityAt) > s.abandonGrace
}

func (s *AttemptService) abandon(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	var out *model.Attempt
	err := withAttemptLock(ctx, s.locker, s.attempts, id, func(a *model.Attempt) error {
		out = a
		if !s.isStale(a, s.now()) {
			return nil
		}
		ok, err := s.attempts.Abandon(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("abandon attempt: %w", err)
		}
		if !ok {
			out, err = loadAttempt(ctx, s.attempts, a.ID)
			return err
		}
		a.Status = model.AttemptStatusAbandoned
		if err := s.buffer.Clear(ctx, a.ID); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Clear answer buffer failed")
		}
		metrics.AttemptsAbandoned.Inc()
		s.log.Info().Str("attempt_id", a.ID.String()).Int("user_id", a.UserID).Msg("Attempt abandoned")
		return nil
	})
	return out, err
}

// ─── Answers ────────────────────────────────────────────────────────

// RecordAnswer overwrites the learner's answer to one question. An attempt
// found past its deadline is submitted on the spot and the write is refused.
func (s *AttemptService) RecordAnswer(ctx context.Context, userID int, attemptID, questionID uuid.UUID, value json.RawMessage) error {
	return withAttemptLock(ctx, s.locker, s.attempts, attemptID, func(a *model.Attempt) error {
		if a.UserID != userID {
			return ErrAttemptNotFound
		}
		if !a.IsActive() {
			return ErrAttemptNotActive
		}

		now := s.now()
		if a.Expired(now) {
			if _, err := s.submitLocked(ctx, a, model.SubmitTriggerDeadline, nil); err != nil {
				return err
			}
			return ErrAttemptNotActive
		}

		q, ok := a.Question(questionID)
		if !ok {
			return ErrQuestionNotFound
		}
		if err := grading.Validate(q, value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}

		if err := s.buffer.Save(ctx, a.ID, questionID, value); err != nil {
			return fmt.Errorf("buffer answer: %w", err)
		}
		if err := s.attempts.Touch(ctx, a.ID, now); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Touch attempt failed")
		}
		metrics.AnswersRecorded.Inc()
		return nil
	})
}

// ─── Submission ─────────────────────────────────────────────────────

// Submit is the learner's manual submission. answers, when given, overwrite
// buffered answers. Submitting an attempt that already left IN_PROGRESS
// returns its current result.
func (s *AttemptService) Submit(ctx context.Context, userID int, attemptID uuid.UUID, answers model.Answers) (*AttemptView, error) {
	var out *model.Attempt
	err := withAttemptLock(ctx, s.locker, s.attempts, attemptID, func(a *model.Attempt) error {
		if a.UserID != userID {
			return ErrAttemptNotFound
		}
		var err error
		out, err = s.submitLocked(ctx, a, model.SubmitTriggerManual, answers)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.learnerView(ctx, out)
}

// SubmitAssessment submits the learner's live attempt at an assessment. With
// no live attempt, the latest result is returned instead.
func (s *AttemptService) SubmitAssessment(ctx context.Context, userID int, assessmentID uuid.UUID, answers model.Answers) (*AttemptView, error) {
	existing, err := s.attempts.ListByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	var latest *model.Attempt
	for i := range existing {
		a := &existing[i]
		if a.IsActive() {
			return s.Submit(ctx, userID, a.ID, answers)
		}
		if a.Status != model.AttemptStatusAbandoned {
			latest = a
		}
	}
	if latest == nil {
		return nil, ErrAttemptNotActive
	}
	return s.learnerView(ctx, latest)
}

// SubmitOnDeadline is the server's deadline-triggered submission.
func (s *AttemptService) SubmitOnDeadline(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	var out *model.Attempt
	err := withAttemptLock(ctx, s.locker, s.attempts, attemptID, func(a *model.Attempt) error {
		var err error
		out, err = s.submitLocked(ctx, a, model.SubmitTriggerDeadline, nil)
		return err
	})
	return out, err
}

// submitLocked freezes answers and scores the attempt. The caller holds the
// attempt lock. The first transition out of IN_PROGRESS wins; later calls
// return the attempt as it stands.
func (s *AttemptService) submitLocked(ctx context.Context, a *model.Attempt, trigger model.SubmitTrigger, submitted model.Answers) (*model.Attempt, error) {
	switch a.Status {
	case model.AttemptStatusSubmitted:
		// Frozen but never scored, e.g. a crash between the two steps.
		if err := s.score(ctx, a); err != nil {
			return nil, err
		}
		return a, nil
	case model.AttemptStatusPendingManualGrading, model.AttemptStatusGraded:
		return a, nil
	case model.AttemptStatusAbandoned:
		return nil, ErrAttemptNotActive
	}

	now := s.now()
	if trigger == model.SubmitTriggerManual && a.Expired(now) {
		// Too late for the learner: record it as the deadline submission
		// with what was saved in time.
		trigger = model.SubmitTriggerDeadline
		submitted = nil
	}

	answers, err := s.buffer.Load(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	for qid, value := range submitted {
		q, ok := a.Question(qid)
		if !ok {
			return nil, ErrQuestionNotFound
		}
		if err := grading.Validate(q, value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
		answers[qid] = value
	}

	spent := max(int(now.Sub(a.StartedAt).Seconds()), 0)
	if trigger == model.SubmitTriggerDeadline && a.TimeLimitMinutes != nil {
		spent = min(spent, *a.TimeLimitMinutes*60)
	}

	a.Answers = answers
	a.SubmittedAt = &now
	a.SubmitTrigger = &trigger
	a.TimeSpentSeconds = &spent

	ok, err := s.attempts.MarkSubmitted(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	if !ok {
		fresh, err := loadAttempt(ctx, s.attempts, a.ID)
		if err != nil {
			return nil, err
		}
		if fresh.IsActive() {
			return nil, fmt.Errorf("attempt %s did not transition", a.ID)
		}
		return s.submitLocked(ctx, fresh, trigger, nil)
	}
	a.Status = model.AttemptStatusSubmitted
	metrics.AttemptsSubmitted.WithLabelValues(string(trigger)).Inc()

	if err := s.buffer.Clear(ctx, a.ID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Clear answer buffer failed")
	}

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Int("user_id", a.UserID).
		Str("trigger", string(trigger)).
		Int("time_spent_seconds", spent).
		Msg("Attempt submitted")

	if err := s.score(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AttemptService) score(ctx context.Context, a *model.Attempt) error {
	tally := scoring.Score(a.ID, a.Questions, a.Answers)
	return s.fin.apply(ctx, a, tally)
}

// ─── Reads ──────────────────────────────────────────────────────────

// Get returns the learner's view of one attempt, enforcing the deadline first.
func (s *AttemptService) Get(ctx context.Context, userID int, attemptID uuid.UUID) (*AttemptView, error) {
	a, err := loadAttempt(ctx, s.attempts, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAttemptNotFound
	}

	if a.IsActive() {
		if a, err = s.settle(ctx, a); err != nil {
			return nil, err
		}
	}
	return s.learnerView(ctx, a)
}

// ListAttempts returns summaries of the learner's attempts at an assessment.
func (s *AttemptService) ListAttempts(ctx context.Context, userID int, assessmentID uuid.UUID) ([]AttemptView, error) {
	existing, err := s.attempts.ListByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	assessment, err := s.assessments.Get(ctx, assessmentID)
	if err != nil && !errors.Is(err, ErrAssessmentNotFound) {
		return nil, err
	}

	views := make([]AttemptView, 0, len(existing))
	for i := range existing {
		a := &existing[i]
		if a.IsActive() {
			if a, err = s.settle(ctx, a); err != nil {
				return nil, err
			}
		}
		v := learnerVisibility(assessment, a.Status)
		v.breakdown = false
		view := buildView(a, nil, nil, v)
		view.Questions = nil
		views = append(views, *view)
	}
	return views, nil
}

func (s *AttemptService) learnerView(ctx context.Context, a *model.Attempt) (*AttemptView, error) {
	if a.IsActive() {
		answers, err := s.buffer.Load(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("load answers: %w", err)
		}
		return buildView(a, nil, answers, visibility{}), nil
	}

	assessment, err := s.assessments.Get(ctx, a.AssessmentID)
	if err != nil && !errors.Is(err, ErrAssessmentNotFound) {
		return nil, err
	}
	v := learnerVisibility(assessment, a.Status)

	var results []model.QuestionAttempt
	if v.breakdown {
		if results, err = s.attempts.ListQuestionAttempts(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("list question attempts: %w", err)
		}
	}
	return buildView(a, results, nil, v), nil
}

// ─── Sweeps ─────────────────────────────────────────────────────────

// SweepExpired force-submits up to limit live attempts past their deadline.
func (s *AttemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	ids, err := s.attempts.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts: %w", err)
	}

	done := 0
	for _, id := range ids {
		if _, err := s.SubmitOnDeadline(ctx, id); err != nil {
			s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Deadline submit failed")
			continue
		}
		done++
	}
	return done, nil
}

// SweepAbandoned marks up to limit idle untimed attempts ABANDONED.
func (s *AttemptService) SweepAbandoned(ctx context.Context, limit int) (int, error) {
	if s.abandonGrace <= 0 {
		return 0, nil
	}
	ids, err := s.attempts.ListStaleUntimed(ctx, s.now().Add(-s.abandonGrace), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale attempts: %w", err)
	}

	done := 0
	for _, id := range ids {
		a, err := s.abandon(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Abandon failed")
			continue
		}
		if a.Status == model.AttemptStatusAbandoned {
			done++
		}
	}
	return done, nil
}

// RecoverSubmitted scores attempts left SUBMITTED by an interrupted finalize.
func (s *AttemptService) RecoverSubmitted(ctx context.Context, limit int) (int, error) {
	ids, err := s.attempts.ListStuckSubmitted(ctx, s.now().Add(-stuckSubmittedAfter), limit)
	if err != nil {
		return 0, fmt.Errorf("list stuck attempts: %w", err)
	}

	done := 0
	for _, id := range ids {
		err := withAttemptLock(ctx, s.locker, s.attempts, id, func(a *model.Attempt) error {
			if a.Status != model.AttemptStatusSubmitted {
				return nil
			}
			return s.score(ctx, a)
		})
		if err != nil {
			s.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Recover submitted attempt failed")
			continue
		}
		done++
	}
	return done, nil
}
