// Package grading evaluates submitted answers against a question's answer key.
// Every function here is pure.
package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/model"
)

var (
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrMalformedAnswer     = errors.New("malformed answer")
	ErrMalformedKey        = errors.New("malformed answer key")
)

// Result is the outcome of evaluating one answer.
type Result struct {
	// IsCorrect is nil when correctness needs an instructor's judgment.
	IsCorrect             *bool
	PointsEarned          float64
	RequiresManualGrading bool
}

// Evaluator grades answers for one question variant. The set of
// implementations is closed to this package.
type Evaluator interface {
	Evaluate(answer json.RawMessage) Result
	// Validate rejects answers whose shape cannot belong to this variant.
	Validate(answer json.RawMessage) error
	variant() model.QuestionType
}

var (
	_ Evaluator = MultipleChoice{}
	_ Evaluator = TrueFalse{}
	_ Evaluator = ShortAnswer{}
	_ Evaluator = Essay{}
)

// For builds the evaluator matching q's type.
func For(q model.Question) (Evaluator, error) {
	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		correct, err := decodeIndexes(q.CorrectAnswers)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, ErrMalformedKey)
		}
		return MultipleChoice{
			Points:        q.Points,
			Options:       len(q.Options),
			Correct:       correct,
			AllowMultiple: q.AllowMultiple,
		}, nil
	case model.QuestionTypeTrueFalse:
		var correct bool
		if err := json.Unmarshal(q.CorrectAnswers, &correct); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, ErrMalformedKey)
		}
		return TrueFalse{Points: q.Points, Correct: correct}, nil
	case model.QuestionTypeShortAnswer:
		accepted, err := decodeStrings(q.CorrectAnswers)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, ErrMalformedKey)
		}
		return ShortAnswer{Points: q.Points, Accepted: accepted}, nil
	case model.QuestionTypeEssay:
		return Essay{Points: q.Points}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, q.Type)
	}
}

// Evaluate grades answer against q. A question whose key cannot be decoded
// scores as incorrect.
func Evaluate(q model.Question, answer json.RawMessage) Result {
	ev, err := For(q)
	if err != nil {
		return incorrect()
	}
	return ev.Evaluate(answer)
}

// Validate checks that answer has a shape acceptable for q.
func Validate(q model.Question, answer json.RawMessage) error {
	ev, err := For(q)
	if err != nil {
		return err
	}
	return ev.Validate(answer)
}

// ─── Multiple choice ────────────────────────────────────────────────

// MultipleChoice is correct only when the selected index set equals Correct
// exactly. No partial credit.
type MultipleChoice struct {
	Points        int
	Options       int
	Correct       []int
	AllowMultiple bool
}

func (MultipleChoice) variant() model.QuestionType { return model.QuestionTypeMultipleChoice }

func (m MultipleChoice) Evaluate(answer json.RawMessage) Result {
	if absent(answer) {
		return incorrect()
	}
	selected, err := decodeIndexes(answer)
	if err != nil || len(selected) == 0 {
		return incorrect()
	}
	if !m.AllowMultiple && len(selected) > 1 {
		return incorrect()
	}
	if slices.Equal(normalizeIndexes(selected), normalizeIndexes(m.Correct)) {
		return correct(m.Points)
	}
	return incorrect()
}

func (m MultipleChoice) Validate(answer json.RawMessage) error {
	if absent(answer) {
		return nil
	}
	selected, err := decodeIndexes(answer)
	if err != nil {
		return ErrMalformedAnswer
	}
	if !m.AllowMultiple && len(selected) > 1 {
		return fmt.Errorf("%w: single selection expected", ErrMalformedAnswer)
	}
	for _, idx := range selected {
		if idx < 0 || (m.Options > 0 && idx >= m.Options) {
			return fmt.Errorf("%w: option %d out of range", ErrMalformedAnswer, idx)
		}
	}
	return nil
}

// ─── True / false ───────────────────────────────────────────────────

type TrueFalse struct {
	Points  int
	Correct bool
}

func (TrueFalse) variant() model.QuestionType { return model.QuestionTypeTrueFalse }

func (t TrueFalse) Evaluate(answer json.RawMessage) Result {
	if absent(answer) {
		return incorrect()
	}
	var got bool
	if err := json.Unmarshal(answer, &got); err != nil {
		return incorrect()
	}
	if got == t.Correct {
		return correct(t.Points)
	}
	return incorrect()
}

func (TrueFalse) Validate(answer json.RawMessage) error {
	if absent(answer) {
		return nil
	}
	var got bool
	if err := json.Unmarshal(answer, &got); err != nil {
		return ErrMalformedAnswer
	}
	return nil
}

// ─── Short answer ───────────────────────────────────────────────────

// ShortAnswer matches the submitted text against every accepted string after
// trimming and case folding. No fuzzy matching.
type ShortAnswer struct {
	Points   int
	Accepted []string
}

func (ShortAnswer) variant() model.QuestionType { return model.QuestionTypeShortAnswer }

func (s ShortAnswer) Evaluate(answer json.RawMessage) Result {
	text, ok := decodeText(answer)
	if !ok || text == "" {
		return incorrect()
	}
	for _, accepted := range s.Accepted {
		if normalize(accepted) == text {
			return correct(s.Points)
		}
	}
	return incorrect()
}

func (ShortAnswer) Validate(answer json.RawMessage) error {
	if absent(answer) {
		return nil
	}
	if _, ok := decodeText(answer); !ok {
		return ErrMalformedAnswer
	}
	return nil
}

// ─── Essay ──────────────────────────────────────────────────────────

// Essay always needs an instructor. A blank essay scores zero without
// entering the manual queue.
type Essay struct {
	Points int
}

func (Essay) variant() model.QuestionType { return model.QuestionTypeEssay }

func (Essay) Evaluate(answer json.RawMessage) Result {
	text, ok := decodeText(answer)
	if !ok || text == "" {
		return incorrect()
	}
	return Result{RequiresManualGrading: true}
}

func (Essay) Validate(answer json.RawMessage) error {
	if absent(answer) {
		return nil
	}
	if _, ok := decodeText(answer); !ok {
		return ErrMalformedAnswer
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────

func correct(points int) Result {
	t := true
	return Result{IsCorrect: &t, PointsEarned: float64(points)}
}

func incorrect() Result {
	f := false
	return Result{IsCorrect: &f}
}

func absent(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// decodeText returns the normalized text of a JSON string answer.
func decodeText(raw json.RawMessage) (string, bool) {
	if absent(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return normalize(s), true
}

// decodeIndexes accepts a single index or a list of indexes.
func decodeIndexes(raw json.RawMessage) ([]int, error) {
	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		return []int{single}, nil
	}
	var many []int
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// decodeStrings accepts a single string or a list of strings.
func decodeStrings(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

func normalizeIndexes(idx []int) []int {
	out := slices.Clone(idx)
	slices.Sort(out)
	return slices.Compact(out)
}
