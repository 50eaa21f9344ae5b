package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AwardRepository reads and settles the point award outbox.
type AwardRepository struct {
	pool *pgxpool.Pool
}

// NewAwardRepository creates a new AwardRepository.
func NewAwardRepository(pool *pgxpool.Pool) *AwardRepository {
	return &AwardRepository{pool: pool}
}

// ListUnpublished returns awards not yet handed to the ledger, created before
// cutoff, oldest first.
func (r *AwardRepository) ListUnpublished(ctx context.Context, cutoff time.Time, limit int) ([]model.PointAward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, user_id, assessment_id, points, bonus_points, reason, created_at, published_at
		 FROM point_awards
		 WHERE published_at IS NULL AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awards []model.PointAward
	for rows.Next() {
		var a model.PointAward
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.UserID, &a.AssessmentID, &a.Points, &a.BonusPoints,
			&a.Reason, &a.CreatedAt, &a.PublishedAt); err != nil {
			return nil, err
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// MarkPublished stamps published_at on every given award in one statement.
func (r *AwardRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE point_awards AS p
		 SET published_at = $2
		 FROM UNNEST($1::uuid[]) AS u(id)
		 WHERE p.id = u.id AND p.published_at IS NULL`,
		ids, at,
	)
	return err
}
