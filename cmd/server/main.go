package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/lock"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/router"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	"github.com/stemsi/exstem-assessment/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Assessment Engine")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	assessmentRepo := repository.NewAssessmentRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	awardRepo := repository.NewAwardRepository(pool)

	// ─── Initialize Caches & Locks ─────────────────────────────────────
	assessmentCache := cache.NewAssessmentCache(rdb, cfg.AssessmentCacheTTL)
	answerBuffer := cache.NewAnswerBuffer(rdb, answerRepo)
	ledger := cache.NewLedgerQueue(rdb)
	locker := lock.NewRedisLocker(rdb, cfg.LockTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	assessmentService := service.NewAssessmentService(assessmentRepo, assessmentCache, log)
	publisher := service.NewPointsPublisher(ledger, awardRepo, cfg.FirstAttemptBonus, log)
	attemptService := service.NewAttemptService(attemptRepo, assessmentService, answerBuffer, locker, publisher, cfg.AbandonGrace, log)
	gradingService := service.NewGradingService(attemptRepo, assessmentService, locker, publisher, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt:    handler.NewAttemptHandler(attemptService),
		Grading:    handler.NewGradingHandler(gradingService),
		Assessment: handler.NewAssessmentHandler(assessmentService),
		WS:         handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Health:     handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	answerWorker := worker.NewAnswerWorker(answerRepo, rdb, log)
	deadlineWorker := worker.NewDeadlineWorker(attemptService, cfg.DeadlineSweepEvery, log)
	relayWorker := worker.NewAwardRelayWorker(publisher, cfg.AwardRelayEvery, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	workers.Go(func() { answerWorker.Start(workerCtx) })
	workers.Go(func() { deadlineWorker.Start(workerCtx) })
	workers.Go(func() { relayWorker.Start(workerCtx) })
	workers.Go(func() { limiter.Run(workerCtx) })

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; the answer worker drains its queue first.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
