package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/lock"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/scoring"
)

// finalizer writes a scoring pass and, on a fresh pass, the point award.
// Shared by submission and manual grading so both finalize identically.
type finalizer struct {
	attempts  AttemptStore
	publisher *PointsPublisher
	now       func() time.Time
	log       zerolog.Logger
}

func (f *finalizer) apply(ctx context.Context, a *model.Attempt, tally scoring.Tally) error {
	a.EarnedPoints = tally.EarnedPoints

	var award *model.PointAward
	if tally.NeedsManualGrading() {
		a.Status = model.AttemptStatusPendingManualGrading
		a.ScorePercent = nil
		a.Passed = nil
		a.GradedAt = nil
	} else {
		pct := scoring.Percent(a.EarnedPoints, a.TotalPoints)
		passed := scoring.Passed(pct, a.PassingScorePercent)
		now := f.now()
		a.Status = model.AttemptStatusGraded
		a.ScorePercent = &pct
		a.Passed = &passed
		a.GradedAt = &now
		award = f.publisher.Build(a)
	}

	created, err := f.attempts.SaveScores(ctx, a, tally.Results, award)
	if err != nil {
		return fmt.Errorf("save scores: %w", err)
	}

	passedLabel := "pending"
	if a.Passed != nil {
		passedLabel = strconv.FormatBool(*a.Passed)
	}
	metrics.AttemptsFinalized.WithLabelValues(string(a.Status), passedLabel).Inc()

	f.log.Info().
		Str("attempt_id", a.ID.String()).
		Int("user_id", a.UserID).
		Str("status", string(a.Status)).
		Float64("earned_points", a.EarnedPoints).
		Int("total_points", a.TotalPoints).
		Int("pending_manual", tally.PendingManual).
		Msg("Attempt scored")

	if created {
		f.publisher.Publish(ctx, award)
	}
	return nil
}

// loadAttempt maps a missing row to ErrAttemptNotFound.
func loadAttempt(ctx context.Context, attempts AttemptStore, id uuid.UUID) (*model.Attempt, error) {
	a, err := attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return a, nil
}

// withAttemptLock runs fn on a freshly loaded attempt while holding its lock.
func withAttemptLock(ctx context.Context, locker lock.Locker, attempts AttemptStore, id uuid.UUID, fn func(*model.Attempt) error) error {
	release, err := locker.Lock(ctx, config.CacheKey.AttemptLockKey(id.String()))
	if err != nil {
		return fmt.Errorf("acquire attempt lock: %w", err)
	}
	defer release()

	a, err := loadAttempt(ctx, attempts, id)
	if err != nil {
		return err
	}
	return fn(a)
}
