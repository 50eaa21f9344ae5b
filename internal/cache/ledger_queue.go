package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// LedgerQueue hands point award events to the gamification ledger through a
// Redis list the ledger consumes.
type LedgerQueue struct {
	rdb *redis.Client
}

// NewLedgerQueue creates a new LedgerQueue.
func NewLedgerQueue(rdb *redis.Client) *LedgerQueue {
	return &LedgerQueue{rdb: rdb}
}

// Publish appends one event to the ledger queue.
func (q *LedgerQueue) Publish(ctx context.Context, event model.PointAwardEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PointsLedgerQueue, payload).Err()
}
