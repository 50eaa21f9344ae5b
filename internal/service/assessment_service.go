package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AssessmentService serves assessment definitions from Redis, falling back to
// the catalog tables.
type AssessmentService struct {
	repo  AssessmentLoader
	cache AssessmentCacher
	log   zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(repo AssessmentLoader, cache AssessmentCacher, log zerolog.Logger) *AssessmentService {
	return &AssessmentService{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "assessment_service").Logger(),
	}
}

// Get returns the definition, repopulating the cache on a miss. Cache errors
// degrade to a database read.
func (s *AssessmentService) Get(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("assessment_id", id.String()).Msg("Assessment cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("load assessment: %w", err)
	}

	if err := s.cache.Set(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("assessment_id", id.String()).Msg("Assessment cache write failed")
	}
	return a, nil
}

// Invalidate drops the cached definition so the next read sees catalog edits.
// Attempts already started keep their own snapshot.
func (s *AssessmentService) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("invalidate assessment cache: %w", err)
	}
	s.log.Info().Str("assessment_id", id.String()).Msg("Assessment cache invalidated")
	return nil
}
