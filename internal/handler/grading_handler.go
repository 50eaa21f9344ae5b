package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

const (
	defaultPerPage = 20
)

// GradingQueue is the instructor grading surface. Implemented by
// service.GradingService.
type GradingQueue interface {
	Queue(ctx context.Context, g service.Grader, f model.GradingQueueFilter) ([]model.PendingAttempt, int64, error)
	Detail(ctx context.Context, g service.Grader, attemptID uuid.UUID) (*service.AttemptView, error)
	GradeQuestion(ctx context.Context, g service.Grader, attemptID, questionID uuid.UUID, points float64, feedback *string) (*service.AttemptView, error)
}

// GradingHandler handles instructor grading endpoints.
type GradingHandler struct {
	grading GradingQueue
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(grading GradingQueue) *GradingHandler {
	return &GradingHandler{grading: grading}
}

// ListQueue godoc
// GET /api/v1/instructor/grading-queue?assessment_id=&course_id=&page=&per_page=
// Lists attempts with essay answers awaiting a grade, oldest first.
func (h *GradingHandler) ListQueue(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.GradingQueueQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = defaultPerPage
	}

	filter := model.GradingQueueFilter{
		Limit:  q.PerPage,
		Offset: (q.Page - 1) * q.PerPage,
	}
	if q.AssessmentID != "" {
		id := uuid.MustParse(q.AssessmentID)
		filter.AssessmentID = &id
	}
	if q.CourseID != "" {
		id := uuid.MustParse(q.CourseID)
		filter.CourseID = &id
	}

	items, total, err := h.grading.Queue(c.Request.Context(), claims.Grader(), filter)
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []model.PendingAttempt{}
	}

	response.SuccessWithPagination(c, http.StatusOK, items, response.NewPagination(q.Page, q.PerPage, total))
}

// GetAttempt godoc
// GET /api/v1/instructor/attempts/:attempt_id
// Returns the full attempt including answer keys.
func (h *GradingHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	view, err := h.grading.Detail(c.Request.Context(), claims.Grader(), attemptID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GradeQuestion godoc
// POST /api/v1/instructor/attempts/:attempt_id/questions/:question_id/grade
// Records a manual grade and finalizes the attempt once nothing is pending.
func (h *GradingHandler) GradeQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}
	questionID, ok := parseUUIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.GradeQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.grading.GradeQuestion(c.Request.Context(), claims.Grader(), attemptID, questionID, *req.PointsEarned, req.Feedback)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}
