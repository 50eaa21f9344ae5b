package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AssessmentRepository reads assessment definitions from the catalog tables.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID loads an assessment with its questions ordered by order_num.
// Returns pgx.ErrNoRows when absent.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, instructor_id, title, time_limit_minutes, passing_score_percent, max_attempts,
			show_results, show_correct_answers, points_reward, updated_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.CourseID, &a.InstructorID, &a.Title, &a.TimeLimitMinutes, &a.PassingScorePercent,
		&a.MaxAttempts, &a.ShowResults, &a.ShowCorrectAnswers, &a.PointsReward, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, type, prompt, points, options, allow_multiple, correct_answers, explanation, order_num
		 FROM assessment_questions
		 WHERE assessment_id = $1
		 ORDER BY order_num, id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       model.Question
			options []byte
			correct []byte
		)
		if err := rows.Scan(&q.ID, &q.Type, &q.Prompt, &q.Points, &options, &q.AllowMultiple, &correct,
			&q.Explanation, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
			}
		}
		if len(correct) > 0 {
			q.CorrectAnswers = json.RawMessage(correct)
		}
		a.Questions = append(a.Questions, q)
	}
	return a, rows.Err()
}

// Create inserts an assessment and its questions in one transaction. Used by
// the seeding tool; the catalog service owns these tables in production.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO assessments (course_id, instructor_id, title, time_limit_minutes, passing_score_percent,
			max_attempts, show_results, show_correct_answers, points_reward)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, updated_at`,
		a.CourseID, a.InstructorID, a.Title, a.TimeLimitMinutes, a.PassingScorePercent,
		a.MaxAttempts, a.ShowResults, a.ShowCorrectAnswers, a.PointsReward,
	).Scan(&a.ID, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range a.Questions {
		q := &a.Questions[i]
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO assessment_questions (assessment_id, type, prompt, points, options, allow_multiple,
				correct_answers, explanation, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			a.ID, q.Type, q.Prompt, q.Points, options, q.AllowMultiple, nullableJSON(q.CorrectAnswers),
			q.Explanation, q.OrderNum,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.ID)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	return tx.Commit(ctx)
}
