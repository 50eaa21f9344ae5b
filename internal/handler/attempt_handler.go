package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AttemptEngine is the learner-facing attempt lifecycle. Implemented by
// service.AttemptService.
type AttemptEngine interface {
	Start(ctx context.Context, userID int, assessmentID uuid.UUID) (*service.StartResult, error)
	RecordAnswer(ctx context.Context, userID int, attemptID, questionID uuid.UUID, value json.RawMessage) error
	Submit(ctx context.Context, userID int, attemptID uuid.UUID, answers model.Answers) (*service.AttemptView, error)
	SubmitAssessment(ctx context.Context, userID int, assessmentID uuid.UUID, answers model.Answers) (*service.AttemptView, error)
	Get(ctx context.Context, userID int, attemptID uuid.UUID) (*service.AttemptView, error)
	ListAttempts(ctx context.Context, userID int, assessmentID uuid.UUID) ([]service.AttemptView, error)
}

// AttemptHandler handles learner attempt endpoints.
type AttemptHandler struct {
	attempts AttemptEngine
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts AttemptEngine) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// StartAttempt godoc
// POST /api/v1/assessments/:id/start
// Starts a new attempt or resumes the learner's live one.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.attempts.Start(c.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		failService(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// SubmitAssessment godoc
// POST /api/v1/assessments/:id/submit
// Submits the learner's live attempt with the final answers.
func (h *AttemptHandler) SubmitAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	answers, ok := bindAnswers(c)
	if !ok {
		return
	}

	view, err := h.attempts.SubmitAssessment(c.Request.Context(), claims.UserID, assessmentID, answers)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SubmitAttempt godoc
// POST /api/v1/assessments/attempts/:attempt_id/submit
// Submits an attempt by id. Repeated calls return the stored result.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	answers, ok := bindAnswers(c)
	if !ok {
		return
	}

	view, err := h.attempts.Submit(c.Request.Context(), claims.UserID, attemptID, answers)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// RecordAnswer godoc
// PUT /api/v1/assessments/attempts/:attempt_id/answers/:question_id
// Saves the current answer for one question. Last write wins.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
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

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.RecordAnswer(c.Request.Context(), claims.UserID, attemptID, questionID, req.Value); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// GetAttempt godoc
// GET /api/v1/assessments/attempts/:attempt_id
// Returns the attempt with results according to the assessment's visibility.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	view, err := h.attempts.Get(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ListAttempts godoc
// GET /api/v1/assessments/:id/attempts
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	views, err := h.attempts.ListAttempts(c.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		failService(c, err)
		return
	}
	if views == nil {
		views = []service.AttemptView{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": views})
}

// ─── Helpers ────────────────────────────────────────────────────────

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// bindAnswers reads an optional {answers} body. An empty body submits with
// whatever was recorded during the attempt.
func bindAnswers(c *gin.Context) (model.Answers, bool) {
	if c.Request.ContentLength == 0 {
		return nil, true
	}

	var req model.SubmitAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return nil, false
	}

	answers := make(model.Answers, len(req.Answers))
	for k, v := range req.Answers {
		qID, err := uuid.Parse(k)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"answers": "keys must be question ids"})
			return nil, false
		}
		answers[qID] = v
	}
	return answers, true
}
