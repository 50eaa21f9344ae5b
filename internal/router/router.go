package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt    *handler.AttemptHandler
	Grading    *handler.GradingHandler
	Assessment *handler.AssessmentHandler
	WS         *handler.WSHandler
	Health     *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		SkipPaths: []string{"/metrics"},
	}))

	// ─── Ops ───────────────────────────────────────────────────────────
	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Learner Group (JWT, Rate Limited) ──────────────────────────
	learnerAPI := router.Group("/api/v1/assessments")
	learnerAPI.Use(
		limiter.Middleware(),
		middleware.RequireLearnerJWT(authService),
	)
	{
		learnerAPI.POST("/:id/start", handlers.Attempt.StartAttempt)
		learnerAPI.POST("/:id/submit", handlers.Attempt.SubmitAssessment)
		learnerAPI.GET("/:id/attempts", handlers.Attempt.ListAttempts)

		learnerAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		learnerAPI.PUT("/attempts/:attempt_id/answers/:question_id", handlers.Attempt.RecordAnswer)
		learnerAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitAttempt)
	}

	// ─── 2. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Instructor Group (JWT + RBAC) ──────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(
		middleware.RequireInstructorJWT(authService),
		middleware.RequireAnyPermission(model.PermissionAttemptsGrade, model.PermissionAttemptsGradeAll),
	)
	{
		instructorAPI.GET("/grading-queue", handlers.Grading.ListQueue)
		instructorAPI.GET("/attempts/:attempt_id", handlers.Grading.GetAttempt)
		instructorAPI.POST("/attempts/:attempt_id/questions/:question_id/grade", handlers.Grading.GradeQuestion)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireInstructorJWT(authService))
	{
		adminAPI.POST("/assessments/:id/refresh-cache",
			middleware.RequirePermission(model.PermissionAssessmentsCache),
			handlers.Assessment.RefreshCache,
		)
	}

	return router
}
