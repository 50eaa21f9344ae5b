package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the states of an attempt.
type AttemptStatus string

const (
	AttemptStatusInProgress           AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted            AttemptStatus = "SUBMITTED"
	AttemptStatusPendingManualGrading AttemptStatus = "PENDING_MANUAL_GRADING"
	AttemptStatusGraded               AttemptStatus = "GRADED"
	// AttemptStatusAbandoned marks an untimed attempt left idle past the grace
	// window. It is terminal, never scored, and does not count toward MaxAttempts.
	AttemptStatusAbandoned AttemptStatus = "ABANDONED"
)

// SubmitTrigger records who initiated the submission.
type SubmitTrigger string

const (
	SubmitTriggerManual   SubmitTrigger = "MANUAL"
	SubmitTriggerDeadline SubmitTrigger = "DEADLINE"
)

// Answers maps question id to the raw submitted value.
type Answers map[uuid.UUID]json.RawMessage

// Attempt is one learner's pass through an assessment.
type Attempt struct {
	ID               uuid.UUID      `json:"id"`
	UserID           int            `json:"user_id"`
	AssessmentID     uuid.UUID      `json:"assessment_id"`
	AttemptNumber    int            `json:"attempt_number"`
	Status           AttemptStatus  `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	DeadlineAt       *time.Time     `json:"deadline_at,omitempty"`
	TimeLimitMinutes *int           `json:"time_limit_minutes,omitempty"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	SubmitTrigger    *SubmitTrigger `json:"submit_trigger,omitempty"`
	LastActivityAt   time.Time      `json:"last_activity_at"`
	EarnedPoints     float64        `json:"earned_points"`
	TotalPoints      int            `json:"total_points"`
	ScorePercent     *float64       `json:"score_percent,omitempty"`
	Passed           *bool          `json:"passed,omitempty"`
	TimeSpentSeconds *int           `json:"time_spent_seconds,omitempty"`
	GradedAt         *time.Time     `json:"graded_at,omitempty"`

	// Snapshot taken at start; scoring never re-reads the live assessment.
	PassingScorePercent float64    `json:"-"`
	PointsReward        int        `json:"-"`
	Questions           []Question `json:"-"`

	// Answers frozen at submission.
	Answers Answers `json:"-"`
}

// IsActive reports whether answers may still be written, ignoring the deadline.
func (a *Attempt) IsActive() bool {
	return a.Status == AttemptStatusInProgress
}

// Expired reports whether the attempt has a deadline that has passed at now.
func (a *Attempt) Expired(now time.Time) bool {
	return a.DeadlineAt != nil && now.After(*a.DeadlineAt)
}

// CountsTowardLimit reports whether the attempt consumes one of MaxAttempts.
func (a *Attempt) CountsTowardLimit() bool {
	return a.Status != AttemptStatusAbandoned
}

// Question looks up a snapshotted question by id.
func (a *Attempt) Question(id uuid.UUID) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// QuestionAttempt is the graded outcome of one question within an attempt.
type QuestionAttempt struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	QuestionID uuid.UUID       `json:"question_id"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	// IsCorrect is nil while a manual-only question awaits a grade.
	IsCorrect             *bool      `json:"is_correct"`
	PointsEarned          float64    `json:"points_earned"`
	MaxPoints             int        `json:"max_points"`
	RequiresManualGrading bool       `json:"requires_manual_grading"`
	InstructorFeedback    *string    `json:"instructor_feedback,omitempty"`
	GradedBy              *int       `json:"graded_by,omitempty"`
	GradedAt              *time.Time `json:"graded_at,omitempty"`
	OrderNum              int        `json:"order_num"`
}

// AwaitingGrade reports whether the question still needs an instructor grade.
func (qa *QuestionAttempt) AwaitingGrade() bool {
	return qa.RequiresManualGrading && qa.GradedAt == nil
}

// PendingAttempt is a row of the manual grading queue.
type PendingAttempt struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	AssessmentID    uuid.UUID `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	CourseID        uuid.UUID `json:"course_id"`
	UserID          int       `json:"user_id"`
	AttemptNumber   int       `json:"attempt_number"`
	SubmittedAt     time.Time `json:"submitted_at"`
	EarnedPoints    float64   `json:"earned_points"`
	TotalPoints     int       `json:"total_points"`
	UngradedCount   int       `json:"ungraded_count"`
}

// GradingQueueFilter narrows the manual grading queue.
type GradingQueueFilter struct {
	// InstructorID restricts to assessments owned by that instructor; 0 means all.
	InstructorID int
	AssessmentID *uuid.UUID
	CourseID     *uuid.UUID
	Limit        int
	Offset       int
}
