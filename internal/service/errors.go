package service

import "errors"

// Attempt engine errors. Handlers map each to a specific response code.
var (
	ErrAttemptLimitExceeded = errors.New("maximum attempts reached")
	ErrAttemptNotActive     = errors.New("attempt is not in progress")
	ErrAttemptNotGradable   = errors.New("attempt is not awaiting or past grading")
	ErrInvalidPoints        = errors.New("points out of range")
	ErrInvalidAnswer        = errors.New("invalid answer for question type")
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrQuestionNotFound     = errors.New("question not found in attempt")
	ErrUnauthorized         = errors.New("not an instructor of this assessment")
)
