package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/lock"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// serviceErrors maps engine errors to their HTTP status and response code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrAssessmentNotFound, http.StatusNotFound, response.ErrAssessmentNotFound},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrQuestionNotFound},
	{service.ErrAttemptLimitExceeded, http.StatusConflict, response.ErrAttemptLimitExceeded},
	{service.ErrAttemptNotActive, http.StatusConflict, response.ErrAttemptNotActive},
	{service.ErrAttemptNotGradable, http.StatusConflict, response.ErrAttemptNotGradable},
	{service.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer},
	{service.ErrInvalidPoints, http.StatusBadRequest, response.ErrInvalidPoints},
	{service.ErrUnauthorized, http.StatusForbidden, response.ErrUnauthorizedGrader},
	{lock.ErrNotAcquired, http.StatusConflict, response.ErrAttemptBusy},
}

// failService writes the response for a service error. Unknown errors are
// logged and reported as internal.
func failService(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}

	zerolog.Ctx(c.Request.Context()).Error().Err(err).
		Str("path", c.FullPath()).
		Msg("Unhandled service error")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// codeFor returns the response code for a service error, used by the
// WebSocket stream which has no HTTP status.
func codeFor(err error) response.ErrCode {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return response.ErrInternal
}
