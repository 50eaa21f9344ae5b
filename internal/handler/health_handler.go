package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/metrics"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency that can report liveness, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports dependency status and worker queue depths.
type HealthHandler struct {
	db        Pinger
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthReport struct {
	Status     string           `json:"status"`
	Uptime     string           `json:"uptime"`
	Postgres   string           `json:"postgres"`
	Redis      string           `json:"redis"`
	Goroutines int              `json:"goroutines"`
	Queues     map[string]int64 `json:"queues,omitempty"`
}

// Health godoc
// GET /health
// Responds 503 when Postgres or Redis is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Truncate(time.Second).String(),
		Postgres:   "ok",
		Redis:      "ok",
		Goroutines: runtime.NumGoroutine(),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres ping failed")
		report.Postgres = "down"
		report.Status = "degraded"
	}

	// ── Worker Queues (pipelined LLEN) ──
	pipe := h.rdb.Pipeline()
	answersCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	ledgerCmd := pipe.LLen(ctx, config.WorkerKey.PointsLedgerQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		report.Redis = "down"
		report.Status = "degraded"
	} else {
		report.Queues = map[string]int64{
			config.WorkerKey.PersistAnswersQueue: answersCmd.Val(),
			config.WorkerKey.PointsLedgerQueue:   ledgerCmd.Val(),
		}
		for name, depth := range report.Queues {
			metrics.QueueDepth.WithLabelValues(name).Set(float64(depth))
		}
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
