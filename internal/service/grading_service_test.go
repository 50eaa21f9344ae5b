package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// pendingEssayAttempt starts and submits an attempt with a correct 4-point
// choice and a 6-point essay, leaving it PENDING_MANUAL_GRADING.
func pendingEssayAttempt(t *testing.T) (*harness, *model.Assessment, uuid.UUID) {
	t.Helper()

	mc := mcQuestion(4, "1")
	essay := essayQuestion(6)
	a := newAssessment(mc, essay)
	h := newHarness(t, a)
	ctx := context.Background()

	res, err := h.attempts.Start(ctx, learnerID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.attempts.RecordAnswer(ctx, learnerID, res.AttemptID, mc.ID, raw("1")); err != nil {
		t.Fatal(err)
	}
	if err := h.attempts.RecordAnswer(ctx, learnerID, res.AttemptID, essay.ID, raw(`"Photosynthesis converts light."`)); err != nil {
		t.Fatal(err)
	}
	return h, a, res.AttemptID
}

func TestEssayAttemptWaitsForManualGrade(t *testing.T) {
	h, a, attemptID := pendingEssayAttempt(t)
	ctx := context.Background()
	essayID := a.Questions[1].ID
	grader := Grader{UserID: instructorID}

	view, err := h.attempts.Submit(ctx, learnerID, attemptID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != model.AttemptStatusPendingManualGrading {
		t.Fatalf("Status = %s, want PENDING_MANUAL_GRADING", view.Status)
	}
	if view.Passed != nil || view.ScorePercent != nil {
		t.Errorf("verdict set while pending: passed=%v pct=%v", view.Passed, view.ScorePercent)
	}
	if *view.EarnedPoints != 4 {
		t.Errorf("EarnedPoints = %v, want 4", *view.EarnedPoints)
	}
	if len(h.ledger.sent()) != 0 {
		t.Fatal("award published before grading finished")
	}

	queue, total, err := h.grading.Queue(ctx, grader, model.GradingQueueFilter{Limit: 20})
	if err != nil || total != 1 || queue[0].AttemptID != attemptID {
		t.Fatalf("Queue = %+v, %d, %v", queue, total, err)
	}

	feedback := "Good, but cite the chloroplast."
	graded, err := h.grading.GradeQuestion(ctx, grader, attemptID, essayID, 5, &feedback)
	if err != nil {
		t.Fatal(err)
	}
	if graded.Status != model.AttemptStatusGraded {
		t.Fatalf("Status = %s, want GRADED", graded.Status)
	}
	if *graded.EarnedPoints != 9 || *graded.ScorePercent != 90 || !*graded.Passed {
		t.Fatalf("earned=%v pct=%v passed=%v, want 9/90/true", *graded.EarnedPoints, *graded.ScorePercent, *graded.Passed)
	}
	if fb := graded.Results[1].Feedback; fb == nil || *fb != feedback {
		t.Errorf("feedback not stored: %v", fb)
	}

	events := h.ledger.sent()
	if len(events) != 1 || events[0].Points != 50+firstAttemptBonus {
		t.Fatalf("events = %+v", events)
	}

	if _, total, _ := h.grading.Queue(ctx, grader, model.GradingQueueFilter{Limit: 20}); total != 0 {
		t.Errorf("graded attempt still queued (%d)", total)
	}
}

func TestGradeQuestionValidation(t *testing.T) {
	h, a, attemptID := pendingEssayAttempt(t)
	ctx := context.Background()
	if _, err := h.attempts.Submit(ctx, learnerID, attemptID, nil); err != nil {
		t.Fatal(err)
	}
	essayID := a.Questions[1].ID

	tests := []struct {
		name     string
		grader   Grader
		question uuid.UUID
		points   float64
		wantErr  error
	}{
		{"negative", Grader{UserID: instructorID}, essayID, -1, ErrInvalidPoints},
		{"above max", Grader{UserID: instructorID}, essayID, 6.5, ErrInvalidPoints},
		{"not a number", Grader{UserID: instructorID}, essayID, math.NaN(), ErrInvalidPoints},
		{"unknown question", Grader{UserID: instructorID}, uuid.New(), 1, ErrQuestionNotFound},
		{"other instructor", Grader{UserID: instructorID + 1}, essayID, 1, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.grading.GradeQuestion(ctx, tt.grader, attemptID, tt.question, tt.points, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := h.store.stored(attemptID).Status; got != model.AttemptStatusPendingManualGrading {
		t.Fatalf("rejected grades changed status to %s", got)
	}

	// Administrators may grade any assessment.
	if _, err := h.grading.GradeQuestion(ctx, Grader{UserID: 1, GradeAll: true}, attemptID, essayID, 6, nil); err != nil {
		t.Fatalf("grade_all grader: %v", err)
	}
}

func TestGradeQuestionRequiresSubmittedAttempt(t *testing.T) {
	h, a, attemptID := pendingEssayAttempt(t)

	_, err := h.grading.GradeQuestion(context.Background(), Grader{UserID: instructorID}, attemptID, a.Questions[1].ID, 3, nil)
	if !errors.Is(err, ErrAttemptNotGradable) {
		t.Fatalf("err = %v, want ErrAttemptNotGradable", err)
	}
}

func TestRegradeFlipsVerdictWithoutRevocation(t *testing.T) {
	h, a, attemptID := pendingEssayAttempt(t)
	ctx := context.Background()
	essayID := a.Questions[1].ID
	grader := Grader{UserID: instructorID}

	if _, err := h.attempts.Submit(ctx, learnerID, attemptID, nil); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		points     float64
		wantPassed bool
		wantEvents int
	}{
		{6, true, 1},  // 10/10
		{0, false, 1}, // 4/10: verdict flips, award kept
		{6, true, 1},  // passes again: already awarded
	}

	for i, step := range steps {
		view, err := h.grading.GradeQuestion(ctx, grader, attemptID, essayID, step.points, nil)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if view.Status != model.AttemptStatusGraded || *view.Passed != step.wantPassed {
			t.Fatalf("step %d: status=%s passed=%v, want GRADED/%v", i, view.Status, *view.Passed, step.wantPassed)
		}
		if n := len(h.ledger.sent()); n != step.wantEvents {
			t.Fatalf("step %d: %d events, want %d", i, n, step.wantEvents)
		}
	}
	if len(h.store.awards) != 1 {
		t.Errorf("awards = %d, want 1", len(h.store.awards))
	}
}

func TestRegradeFailToPassAwardsOnce(t *testing.T) {
	h, a, attemptID := pendingEssayAttempt(t)
	ctx := context.Background()
	essayID := a.Questions[1].ID
	grader := Grader{UserID: instructorID}

	if _, err := h.attempts.Submit(ctx, learnerID, attemptID, nil); err != nil {
		t.Fatal(err)
	}

	view, err := h.grading.GradeQuestion(ctx, grader, attemptID, essayID, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if *view.Passed {
		t.Fatal("5/10 should fail a 60% threshold")
	}
	if len(h.ledger.sent()) != 0 {
		t.Fatal("award published for a failed attempt")
	}

	view, err = h.grading.GradeQuestion(ctx, grader, attemptID, essayID, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !*view.Passed || *view.ScorePercent != 60 {
		t.Fatalf("pct=%v passed=%v, want 60/true", *view.ScorePercent, *view.Passed)
	}
	if len(h.ledger.sent()) != 1 {
		t.Fatalf("events = %d, want 1", len(h.ledger.sent()))
	}
}

func TestQueueIsScopedToOwner(t *testing.T) {
	h, _, attemptID := pendingEssayAttempt(t)
	ctx := context.Background()
	if _, err := h.attempts.Submit(ctx, learnerID, attemptID, nil); err != nil {
		t.Fatal(err)
	}

	_, total, err := h.grading.Queue(ctx, Grader{UserID: instructorID + 1}, model.GradingQueueFilter{Limit: 20})
	if err != nil || total != 0 {
		t.Fatalf("foreign instructor sees %d pending (err %v)", total, err)
	}
	_, total, err = h.grading.Queue(ctx, Grader{UserID: instructorID + 1, GradeAll: true}, model.GradingQueueFilter{Limit: 20})
	if err != nil || total != 1 {
		t.Fatalf("grade_all sees %d pending (err %v)", total, err)
	}

	detail, err := h.grading.Detail(ctx, Grader{UserID: instructorID}, attemptID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.UserID != learnerID || len(detail.Results) != 2 || string(detail.Results[0].CorrectAnswers) != "1" {
		t.Errorf("instructor detail incomplete: %+v", detail)
	}
	if _, err := h.grading.Detail(ctx, Grader{UserID: instructorID + 1}, attemptID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("foreign detail: err = %v, want ErrUnauthorized", err)
	}
}
