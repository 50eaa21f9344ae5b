package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AttemptView is the read model returned to learners and instructors. Which
// fields are populated depends on the assessment's result visibility.
type AttemptView struct {
	ID               uuid.UUID            `json:"id"`
	UserID           int                  `json:"user_id,omitempty"`
	AssessmentID     uuid.UUID            `json:"assessment_id"`
	AttemptNumber    int                  `json:"attempt_number"`
	Status           model.AttemptStatus  `json:"status"`
	StartedAt        time.Time            `json:"started_at"`
	DeadlineAt       *time.Time           `json:"deadline_at,omitempty"`
	SubmittedAt      *time.Time           `json:"submitted_at,omitempty"`
	SubmitTrigger    *model.SubmitTrigger `json:"submit_trigger,omitempty"`
	TimeSpentSeconds *int                 `json:"time_spent_seconds,omitempty"`

	EarnedPoints *float64 `json:"earned_points,omitempty"`
	TotalPoints  *int     `json:"total_points,omitempty"`
	ScorePercent *float64 `json:"score_percent,omitempty"`
	Passed       *bool    `json:"passed,omitempty"`

	// Questions and Answers are only present while the attempt is in progress.
	Questions []model.QuestionForLearner `json:"questions,omitempty"`
	Answers   model.Answers              `json:"answers,omitempty"`

	Results []QuestionResult `json:"results,omitempty"`
}

// QuestionResult is the per-question breakdown of a scored attempt.
type QuestionResult struct {
	QuestionID            uuid.UUID          `json:"question_id"`
	Type                  model.QuestionType `json:"type"`
	Prompt                string             `json:"prompt"`
	Answer                json.RawMessage    `json:"answer,omitempty"`
	IsCorrect             *bool              `json:"is_correct"`
	PointsEarned          float64            `json:"points_earned"`
	MaxPoints             int                `json:"max_points"`
	RequiresManualGrading bool               `json:"requires_manual_grading"`
	AwaitingGrade         bool               `json:"awaiting_grade"`
	Feedback              *string            `json:"feedback,omitempty"`
	CorrectAnswers        json.RawMessage    `json:"correct_answers,omitempty"`
	Explanation           *string            `json:"explanation,omitempty"`
}

type visibility struct {
	scores    bool
	breakdown bool
	key       bool
	owner     bool
}

// learnerVisibility applies the assessment's result flags. Correct answers
// are only revealed once the attempt is fully graded.
func learnerVisibility(a *model.Assessment, status model.AttemptStatus) visibility {
	if a == nil || !a.ShowResults {
		return visibility{}
	}
	return visibility{
		scores:    true,
		breakdown: true,
		key:       a.ShowCorrectAnswers && status == model.AttemptStatusGraded,
	}
}

func instructorVisibility() visibility {
	return visibility{scores: true, breakdown: true, key: true, owner: true}
}

func buildView(a *model.Attempt, results []model.QuestionAttempt, live model.Answers, v visibility) *AttemptView {
	view := &AttemptView{
		ID:               a.ID,
		AssessmentID:     a.AssessmentID,
		AttemptNumber:    a.AttemptNumber,
		Status:           a.Status,
		StartedAt:        a.StartedAt,
		DeadlineAt:       a.DeadlineAt,
		SubmittedAt:      a.SubmittedAt,
		SubmitTrigger:    a.SubmitTrigger,
		TimeSpentSeconds: a.TimeSpentSeconds,
	}
	if v.owner {
		view.UserID = a.UserID
	}

	if a.Status == model.AttemptStatusInProgress {
		total := a.TotalPoints
		view.TotalPoints = &total
		view.Questions = model.QuestionsForLearner(a.Questions)
		view.Answers = live
		return view
	}

	if v.scores && a.Status != model.AttemptStatusAbandoned {
		earned, total := a.EarnedPoints, a.TotalPoints
		view.EarnedPoints = &earned
		view.TotalPoints = &total
		view.ScorePercent = a.ScorePercent
		view.Passed = a.Passed
	}

	if v.breakdown {
		view.Results = make([]QuestionResult, 0, len(results))
		for _, qa := range results {
			q, _ := a.Question(qa.QuestionID)
			r := QuestionResult{
				QuestionID:            qa.QuestionID,
				Type:                  q.Type,
				Prompt:                q.Prompt,
				Answer:                qa.Answer,
				IsCorrect:             qa.IsCorrect,
				PointsEarned:          qa.PointsEarned,
				MaxPoints:             qa.MaxPoints,
				RequiresManualGrading: qa.RequiresManualGrading,
				AwaitingGrade:         qa.AwaitingGrade(),
				Feedback:              qa.InstructorFeedback,
			}
			if v.key {
				r.CorrectAnswers = q.CorrectAnswers
				r.Explanation = q.Explanation
			}
			view.Results = append(view.Results, r)
		}
	}
	return view
}
