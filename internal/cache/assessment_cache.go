// Package cache holds the Redis-backed adapters used by the attempt engine.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AssessmentCache stores full assessment definitions, answer keys included.
type AssessmentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAssessmentCache creates an AssessmentCache with the given entry TTL.
func NewAssessmentCache(rdb *redis.Client, ttl time.Duration) *AssessmentCache {
	return &AssessmentCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached definition, or (nil, nil) on a miss.
func (c *AssessmentCache) Get(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.AssessmentDefinitionKey(id.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var a model.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Set stores a definition for the configured TTL.
func (c *AssessmentCache) Set(ctx context.Context, a *model.Assessment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.AssessmentDefinitionKey(a.ID.String()), raw, c.ttl).Err()
}

// Delete drops a cached definition.
func (c *AssessmentCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.AssessmentDefinitionKey(id.String())).Err()
}
