package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question variants.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// Assessment is the catalog definition of a quiz or exam. It is read-only here.
type Assessment struct {
	ID                  uuid.UUID  `json:"id"`
	CourseID            uuid.UUID  `json:"course_id"`
	InstructorID        int        `json:"instructor_id"`
	Title               string     `json:"title"`
	TimeLimitMinutes    *int       `json:"time_limit_minutes,omitempty"`
	PassingScorePercent float64    `json:"passing_score_percent"`
	MaxAttempts         *int       `json:"max_attempts,omitempty"`
	ShowResults         bool       `json:"show_results"`
	ShowCorrectAnswers  bool       `json:"show_correct_answers"`
	PointsReward        int        `json:"points_reward"`
	Questions           []Question `json:"questions"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TotalPoints sums the points of every question.
func (a *Assessment) TotalPoints() int {
	total := 0
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// Question is one item of an assessment, answer key included.
type Question struct {
	ID     uuid.UUID    `json:"id"`
	Type   QuestionType `json:"type"`
	Prompt string       `json:"prompt"`
	Points int          `json:"points"`
	// Options is the ordered list of choices for MULTIPLE_CHOICE questions.
	Options       []string `json:"options,omitempty"`
	AllowMultiple bool     `json:"allow_multiple,omitempty"`
	// CorrectAnswers depends on Type: an index or index list, a boolean, or a
	// list of acceptable strings. Empty for ESSAY.
	CorrectAnswers json.RawMessage `json:"correct_answers,omitempty"`
	Explanation    *string         `json:"explanation,omitempty"`
	OrderNum       int             `json:"order_num"`
}

// QuestionForLearner is a question with the answer key and explanation stripped.
type QuestionForLearner struct {
	ID            uuid.UUID    `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Points        int          `json:"points"`
	Options       []string     `json:"options,omitempty"`
	AllowMultiple bool         `json:"allow_multiple,omitempty"`
	OrderNum      int          `json:"order_num"`
}

// ForLearner strips grading data from q.
func (q Question) ForLearner() QuestionForLearner {
	return QuestionForLearner{
		ID:            q.ID,
		Type:          q.Type,
		Prompt:        q.Prompt,
		Points:        q.Points,
		Options:       q.Options,
		AllowMultiple: q.AllowMultiple,
		OrderNum:      q.OrderNum,
	}
}

// QuestionsForLearner strips grading data from every question, preserving order.
func QuestionsForLearner(questions []Question) []QuestionForLearner {
	out := make([]QuestionForLearner, len(questions))
	for i, q := range questions {
		out[i] = q.ForLearner()
	}
	return out
}
