package scoring

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name   string
		earned float64
		total  int
		want   float64
	}{
		{"zero total", 0, 0, 0},
		{"full", 10, 10, 100},
		{"two thirds rounds up", 2, 3, 66.7},
		{"one third rounds down", 1, 3, 33.3},
		{"half point", 7.5, 10, 75},
		{"over total is clamped", 12, 10, 100},
		{"negative is clamped", -1, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.earned, tt.total); got != tt.want {
				t.Errorf("Percent(%v, %d) = %v, want %v", tt.earned, tt.total, got, tt.want)
			}
		})
	}
}

func TestPassedIsInclusive(t *testing.T) {
	if !Passed(70, 70) {
		t.Error("score equal to threshold should pass")
	}
	if Passed(69.9, 70) {
		t.Error("score below threshold should fail")
	}
}

func TestScoreMixedAssessment(t *testing.T) {
	mc := model.Question{ID: uuid.New(), Type: model.QuestionTypeMultipleChoice, Points: 4, Options: []string{"a", "b", "c"}, CorrectAnswers: json.RawMessage("1")}
	tf := model.Question{ID: uuid.New(), Type: model.QuestionTypeTrueFalse, Points: 2, CorrectAnswers: json.RawMessage("false")}
	essay := model.Question{ID: uuid.New(), Type: model.QuestionTypeEssay, Points: 6}
	questions := []model.Question{mc, tf, essay}

	answers := model.Answers{
		mc.ID:    json.RawMessage("1"),
		essay.ID: json.RawMessage(`"my essay"`),
	}

	tally := Score(uuid.New(), questions, answers)

	if tally.TotalPoints != 12 {
		t.Errorf("TotalPoints = %d, want 12", tally.TotalPoints)
	}
	if tally.EarnedPoints != 4 {
		t.Errorf("EarnedPoints = %v, want 4", tally.EarnedPoints)
	}
	if tally.AutoPoints != 6 || tally.ManualPoints != 6 {
		t.Errorf("Auto/Manual = %d/%d, want 6/6", tally.AutoPoints, tally.ManualPoints)
	}
	if !tally.NeedsManualGrading() || tally.PendingManual != 1 {
		t.Errorf("PendingManual = %d, want 1", tally.PendingManual)
	}
	if len(tally.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(tally.Results))
	}
	if tally.Results[1].IsCorrect == nil || *tally.Results[1].IsCorrect {
		t.Error("unanswered true/false should be incorrect")
	}

	// Instructor grades the essay.
	now := time.Now()
	tally.Results[2].PointsEarned = 5
	tally.Results[2].GradedAt = &now

	re := Retally(tally.Results, tally.TotalPoints)
	if re.NeedsManualGrading() {
		t.Error("no question should be pending after grading")
	}
	if re.EarnedPoints != 9 {
		t.Errorf("EarnedPoints = %v, want 9", re.EarnedPoints)
	}
}

func TestScoreEarnedNeverExceedsTotal(t *testing.T) {
	q := model.Question{ID: uuid.New(), Type: model.QuestionTypeTrueFalse, Points: 3, CorrectAnswers: json.RawMessage("true")}
	tally := Score(uuid.New(), []model.Question{q}, model.Answers{q.ID: json.RawMessage("true")})

	tally.Results[0].PointsEarned = 50
	re := Retally(tally.Results, tally.TotalPoints)
	if re.EarnedPoints > float64(re.TotalPoints) {
		t.Errorf("EarnedPoints %v exceeds TotalPoints %d", re.EarnedPoints, re.TotalPoints)
	}
}
