package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AttemptRepository handles attempt and question attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, user_id, assessment_id, attempt_number, status, started_at, deadline_at,
	time_limit_minutes, submitted_at, submit_trigger, last_activity_at, earned_points, total_points,
	score_percent, passed, time_spent_seconds, graded_at, passing_score_percent, points_reward,
	questions, answers`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	var (
		a         model.Attempt
		questions []byte
		answers   []byte
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.AssessmentID, &a.AttemptNumber, &a.Status, &a.StartedAt, &a.DeadlineAt,
		&a.TimeLimitMinutes, &a.SubmittedAt, &a.SubmitTrigger, &a.LastActivityAt, &a.EarnedPoints, &a.TotalPoints,
		&a.ScorePercent, &a.Passed, &a.TimeSpentSeconds, &a.GradedAt, &a.PassingScorePercent, &a.PointsReward,
		&questions, &answers,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &a.Questions); err != nil {
		return nil, fmt.Errorf("decode question snapshot: %w", err)
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return &a, nil
}

// Create inserts a new IN_PROGRESS attempt with its question snapshot.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return fmt.Errorf("encode question snapshot: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, assessment_id, attempt_number, status, started_at, deadline_at,
			time_limit_minutes, last_activity_at, total_points, passing_score_percent, points_reward, questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		a.UserID, a.AssessmentID, a.AttemptNumber, model.AttemptStatusInProgress, a.StartedAt, a.DeadlineAt,
		a.TimeLimitMinutes, a.LastActivityAt, a.TotalPoints, a.PassingScorePercent, a.PointsReward, questions,
	).Scan(&a.ID)
}

// GetByID retrieves an attempt. Returns pgx.ErrNoRows when absent.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// ListByUserAndAssessment returns every attempt of a learner at an assessment, oldest first.
func (r *AttemptRepository) ListByUserAndAssessment(ctx context.Context, userID int, assessmentID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE user_id = $1 AND assessment_id = $2
		 ORDER BY attempt_number`, userID, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// Touch records learner activity on a live attempt.
func (r *AttemptRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET last_activity_at = $1 WHERE id = $2 AND status = $3`,
		at, id, model.AttemptStatusInProgress)
	return err
}

// MarkSubmitted moves an IN_PROGRESS attempt to SUBMITTED and freezes its answers.
// Reports false when the attempt had already left IN_PROGRESS.
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, a *model.Attempt) (bool, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, submitted_at = $2, submit_trigger = $3, time_spent_seconds = $4, answers = $5
		 WHERE id = $6 AND status = $7`,
		model.AttemptStatusSubmitted, a.SubmittedAt, a.SubmitTrigger, a.TimeSpentSeconds, answers,
		a.ID, model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SaveScores writes per-question results and the attempt's scoring state in
// one transaction. When award is non-nil it is inserted unless the learner
// already holds one for the assessment; the return value reports whether it
// was inserted.
func (r *AttemptRepository) SaveScores(ctx context.Context, a *model.Attempt, results []model.QuestionAttempt, award *model.PointAward) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, qa := range results {
		batch.Queue(
			`INSERT INTO question_attempts (attempt_id, question_id, answer, is_correct, points_earned, max_points,
				requires_manual_grading, instructor_feedback, graded_by, graded_at, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET is_correct = EXCLUDED.is_correct,
			     points_earned = EXCLUDED.points_earned,
			     instructor_feedback = EXCLUDED.instructor_feedback,
			     graded_by = EXCLUDED.graded_by,
			     graded_at = EXCLUDED.graded_at`,
			a.ID, qa.QuestionID, nullableJSON(qa.Answer), qa.IsCorrect, qa.PointsEarned, qa.MaxPoints,
			qa.RequiresManualGrading, qa.InstructorFeedback, qa.GradedBy, qa.GradedAt, qa.OrderNum,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("save question attempts: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, earned_points = $2, score_percent = $3, passed = $4, graded_at = $5
		 WHERE id = $6 AND status IN ($7, $8, $9)`,
		a.Status, a.EarnedPoints, a.ScorePercent, a.Passed, a.GradedAt, a.ID,
		model.AttemptStatusSubmitted, model.AttemptStatusPendingManualGrading, model.AttemptStatusGraded,
	)
	if err != nil {
		return false, fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, fmt.Errorf("attempt %s is not in a gradable state", a.ID)
	}

	created := false
	if award != nil {
		err := tx.QueryRow(ctx,
			`INSERT INTO point_awards (attempt_id, user_id, assessment_id, points, bonus_points, reason)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, assessment_id) DO NOTHING
			 RETURNING id, created_at`,
			award.AttemptID, award.UserID, award.AssessmentID, award.Points, award.BonusPoints, award.Reason,
		).Scan(&award.ID, &award.CreatedAt)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, pgx.ErrNoRows):
			// Already awarded for this assessment.
		default:
			return false, fmt.Errorf("insert point award: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// ListQuestionAttempts returns an attempt's per-question results in question order.
func (r *AttemptRepository) ListQuestionAttempts(ctx context.Context, attemptID uuid.UUID) ([]model.QuestionAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, answer, is_correct, points_earned, max_points,
			requires_manual_grading, instructor_feedback, graded_by, graded_at, order_num
		 FROM question_attempts
		 WHERE attempt_id = $1
		 ORDER BY order_num, question_id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.QuestionAttempt
	for rows.Next() {
		var (
			qa     model.QuestionAttempt
			answer []byte
		)
		if err := rows.Scan(&qa.AttemptID, &qa.QuestionID, &answer, &qa.IsCorrect, &qa.PointsEarned, &qa.MaxPoints,
			&qa.RequiresManualGrading, &qa.InstructorFeedback, &qa.GradedBy, &qa.GradedAt, &qa.OrderNum); err != nil {
			return nil, err
		}
		if len(answer) > 0 {
			qa.Answer = json.RawMessage(answer)
		}
		results = append(results, qa)
	}
	return results, rows.Err()
}

// Abandon marks a live attempt ABANDONED. Reports false if it was no longer live.
func (r *AttemptRepository) Abandon(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = $1 WHERE id = $2 AND status = $3`,
		model.AttemptStatusAbandoned, id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPending returns PENDING_MANUAL_GRADING attempts, oldest submission first.
func (r *AttemptRepository) ListPending(ctx context.Context, f model.GradingQueueFilter) ([]model.PendingAttempt, int64, error) {
	baseQuery := `
		FROM attempts t
		JOIN assessments a ON a.id = t.assessment_id
		WHERE t.status = $1
	`
	args := []any{model.AttemptStatusPendingManualGrading}

	if f.InstructorID != 0 {
		args = append(args, f.InstructorID)
		baseQuery += fmt.Sprintf(" AND a.instructor_id = $%d", len(args))
	}
	if f.AssessmentID != nil {
		args = append(args, *f.AssessmentID)
		baseQuery += fmt.Sprintf(" AND t.assessment_id = $%d", len(args))
	}
	if f.CourseID != nil {
		args = append(args, *f.CourseID)
		baseQuery += fmt.Sprintf(" AND a.course_id = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT t.id, t.assessment_id, a.title, a.course_id, t.user_id, t.attempt_number, t.submitted_at,
			t.earned_points, t.total_points,
			(SELECT COUNT(*) FROM question_attempts q
			 WHERE q.attempt_id = t.id AND q.requires_manual_grading AND q.graded_at IS NULL)
		%s
		ORDER BY t.submitted_at ASC
		LIMIT $%d OFFSET $%d`, baseQuery, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var pending []model.PendingAttempt
	for rows.Next() {
		var p model.PendingAttempt
		if err := rows.Scan(&p.AttemptID, &p.AssessmentID, &p.AssessmentTitle, &p.CourseID, &p.UserID,
			&p.AttemptNumber, &p.SubmittedAt, &p.EarnedPoints, &p.TotalPoints, &p.UngradedCount); err != nil {
			return nil, 0, err
		}
		pending = append(pending, p)
	}
	return pending, total, rows.Err()
}

// ListExpired returns live attempts whose deadline passed before now.
func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx,
		`SELECT id FROM attempts
		 WHERE status = $1 AND deadline_at IS NOT NULL AND deadline_at < $2
		 ORDER BY deadline_at LIMIT $3`,
		model.AttemptStatusInProgress, now, limit)
}

// ListStaleUntimed returns untimed live attempts idle since before cutoff.
func (r *AttemptRepository) ListStaleUntimed(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx,
		`SELECT id FROM attempts
		 WHERE status = $1 AND deadline_at IS NULL AND last_activity_at < $2
		 ORDER BY last_activity_at LIMIT $3`,
		model.AttemptStatusInProgress, cutoff, limit)
}

// ListStuckSubmitted returns attempts frozen before cutoff that never got scored.
func (r *AttemptRepository) ListStuckSubmitted(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx,
		`SELECT id FROM attempts
		 WHERE status = $1 AND submitted_at < $2
		 ORDER BY submitted_at LIMIT $3`,
		model.AttemptStatusSubmitted, cutoff, limit)
}

func (r *AttemptRepository) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// nullableJSON maps an absent answer to SQL NULL rather than an empty jsonb.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
