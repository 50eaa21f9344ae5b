package model

import (
	"time"

	"github.com/google/uuid"
)

// AwardReasonAssessmentPassed is the only reason this service emits.
const AwardReasonAssessmentPassed = "assessment_passed"

// PointAward is the durable record that an award was attempted. At most one
// exists per (user, assessment).
type PointAward struct {
	ID           uuid.UUID  `json:"id"`
	AttemptID    uuid.UUID  `json:"attempt_id"`
	UserID       int        `json:"user_id"`
	AssessmentID uuid.UUID  `json:"assessment_id"`
	Points       int        `json:"points"`
	BonusPoints  int        `json:"bonus_points"`
	Reason       string     `json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// PointAwardEvent is the message the gamification ledger consumes.
type PointAwardEvent struct {
	AwardID      uuid.UUID `json:"awardId"`
	UserID       int       `json:"userId"`
	Points       int       `json:"points"`
	Reason       string    `json:"reason"`
	AssessmentID uuid.UUID `json:"assessmentId"`
}

// Event converts the award into its wire form.
func (a *PointAward) Event() PointAwardEvent {
	return PointAwardEvent{
		AwardID:      a.ID,
		UserID:       a.UserID,
		Points:       a.Points,
		Reason:       a.Reason,
		AssessmentID: a.AssessmentID,
	}
}
