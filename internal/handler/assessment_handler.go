package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// AssessmentCacheInvalidator drops cached assessment definitions.
// Implemented by service.AssessmentService.
type AssessmentCacheInvalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// AssessmentHandler handles assessment administration endpoints.
type AssessmentHandler struct {
	assessments AssessmentCacheInvalidator
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessments AssessmentCacheInvalidator) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// RefreshCache godoc
// POST /api/v1/admin/assessments/:id/refresh-cache
// Drops the cached definition so the next start reads the catalog again.
// Attempts already started keep their snapshot.
func (h *AssessmentHandler) RefreshCache(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.assessments.Invalidate(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessment_id": id, "status": "invalidated"})
}
