package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// relayGrace keeps the relay away from awards whose synchronous publish may
// still be in flight.
const relayGrace = 30 * time.Second

// PointsPublisher builds point awards for passed attempts and hands them to
// the gamification ledger.
type PointsPublisher struct {
	ledger            Ledger
	awards            AwardStore
	firstAttemptBonus int
	now               func() time.Time
	log               zerolog.Logger
}

// NewPointsPublisher creates a new PointsPublisher.
func NewPointsPublisher(ledger Ledger, awards AwardStore, firstAttemptBonus int, log zerolog.Logger) *PointsPublisher {
	return &PointsPublisher{
		ledger:            ledger,
		awards:            awards,
		firstAttemptBonus: firstAttemptBonus,
		now:               time.Now,
		log:               log.With().Str("component", "points_publisher").Logger(),
	}
}

// Build returns the award a passed attempt earns, or nil when it earns none.
func (p *PointsPublisher) Build(a *model.Attempt) *model.PointAward {
	if a.Passed == nil || !*a.Passed {
		return nil
	}

	bonus := 0
	if a.AttemptNumber == 1 {
		bonus = p.firstAttemptBonus
	}
	points := a.PointsReward + bonus
	if points <= 0 {
		return nil
	}

	return &model.PointAward{
		AttemptID:    a.ID,
		UserID:       a.UserID,
		AssessmentID: a.AssessmentID,
		Points:       points,
		BonusPoints:  bonus,
		Reason:       model.AwardReasonAssessmentPassed,
	}
}

// Publish sends one recorded award. Failures are logged and left for
// RelayPending; the caller never sees them.
func (p *PointsPublisher) Publish(ctx context.Context, award *model.PointAward) {
	log := p.log.With().
		Str("award_id", award.ID.String()).
		Int("user_id", award.UserID).
		Str("assessment_id", award.AssessmentID.String()).
		Logger()

	if err := p.ledger.Publish(ctx, award.Event()); err != nil {
		metrics.AwardsPublished.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Msg("Point award publish failed, relay will retry")
		return
	}
	metrics.AwardsPublished.WithLabelValues("sent").Inc()

	if err := p.awards.MarkPublished(ctx, []uuid.UUID{award.ID}, p.now()); err != nil {
		// The relay will send it again; the ledger dedupes on awardId.
		log.Warn().Err(err).Msg("Mark award published failed")
		return
	}
	log.Info().Int("points", award.Points).Msg("Point award published")
}

// RelayPending republishes up to limit awards whose earlier publish failed.
// Returns how many were handed to the ledger.
func (p *PointsPublisher) RelayPending(ctx context.Context, limit int) (int, error) {
	awards, err := p.awards.ListUnpublished(ctx, p.now().Add(-relayGrace), limit)
	if err != nil {
		return 0, fmt.Errorf("list unpublished awards: %w", err)
	}

	sent := make([]uuid.UUID, 0, len(awards))
	for i := range awards {
		if err := p.ledger.Publish(ctx, awards[i].Event()); err != nil {
			metrics.AwardsPublished.WithLabelValues("failed").Inc()
			p.log.Warn().Err(err).Str("award_id", awards[i].ID.String()).Msg("Relay publish failed")
			break
		}
		metrics.AwardsPublished.WithLabelValues("relayed").Inc()
		sent = append(sent, awards[i].ID)
	}

	if err := p.awards.MarkPublished(ctx, sent, p.now()); err != nil {
		return 0, fmt.Errorf("mark awards published: %w", err)
	}
	return len(sent), nil
}
