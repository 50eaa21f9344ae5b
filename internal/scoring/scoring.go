// Package scoring turns per-question results into attempt totals.
package scoring

import (
	"math"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-assessment/internal/grading"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// Tally is the aggregate of one scoring pass.
type Tally struct {
	Results      []model.QuestionAttempt
	EarnedPoints float64
	TotalPoints  int
	// AutoPoints is the maximum reachable through automatic grading;
	// ManualPoints is what is still waiting on an instructor.
	AutoPoints    int
	ManualPoints  int
	PendingManual int
}

// NeedsManualGrading reports whether any question still awaits an instructor.
func (t Tally) NeedsManualGrading() bool {
	return t.PendingManual > 0
}

// Score evaluates every question in order against answers. Questions without
// an answer score zero.
func Score(attemptID uuid.UUID, questions []model.Question, answers model.Answers) Tally {
	tally := Tally{Results: make([]model.QuestionAttempt, 0, len(questions))}

	for _, q := range questions {
		answer := answers[q.ID]
		res := grading.Evaluate(q, answer)

		qa := model.QuestionAttempt{
			AttemptID:             attemptID,
			QuestionID:            q.ID,
			Answer:                answer,
			IsCorrect:             res.IsCorrect,
			PointsEarned:          res.PointsEarned,
			MaxPoints:             q.Points,
			RequiresManualGrading: res.RequiresManualGrading,
			OrderNum:              q.OrderNum,
		}
		tally.Results = append(tally.Results, qa)
		tally.TotalPoints += q.Points
		if res.RequiresManualGrading {
			tally.ManualPoints += q.Points
		} else {
			tally.AutoPoints += q.Points
		}
	}

	return Retally(tally.Results, tally.TotalPoints)
}

// Retally recomputes the running totals from existing results, for use after
// a manual grade changes one of them. totalPoints is the attempt's snapshot.
func Retally(results []model.QuestionAttempt, totalPoints int) Tally {
	tally := Tally{Results: results, TotalPoints: totalPoints}
	for i := range results {
		qa := &results[i]
		tally.EarnedPoints += qa.PointsEarned
		if qa.RequiresManualGrading {
			tally.ManualPoints += qa.MaxPoints
			if qa.AwaitingGrade() {
				tally.PendingManual++
			}
		} else {
			tally.AutoPoints += qa.MaxPoints
		}
	}
	if tally.EarnedPoints > float64(totalPoints) {
		tally.EarnedPoints = float64(totalPoints)
	}
	return tally
}

// Percent is earned/total*100 rounded to one decimal and clamped to [0, 100].
// A zero total yields 0.
func Percent(earned float64, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := math.Round(earned/float64(total)*1000) / 10
	return math.Max(0, math.Min(100, p))
}

// Passed applies an inclusive threshold.
func Passed(scorePercent, passingScorePercent float64) bool {
	return scorePercent >= passingScorePercent
}
