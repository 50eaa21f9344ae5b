package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied     ErrCode = "PERMISSION_DENIED"
	ErrLearnerAccessOnly    ErrCode = "LEARNER_ACCESS_ONLY"
	ErrInstructorAccessOnly ErrCode = "INSTRUCTOR_ACCESS_ONLY"
	ErrUnauthorizedGrader   ErrCode = "UNAUTHORIZED_GRADER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"
	ErrInvalidPoints  ErrCode = "INVALID_POINTS"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound           ErrCode = "NOT_FOUND"
	ErrAssessmentNotFound ErrCode = "ASSESSMENT_NOT_FOUND"
	ErrAttemptNotFound    ErrCode = "ATTEMPT_NOT_FOUND"
	ErrQuestionNotFound   ErrCode = "QUESTION_NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptLimitExceeded ErrCode = "ATTEMPT_LIMIT_EXCEEDED"
	ErrAttemptNotActive     ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrAttemptNotGradable   ErrCode = "ATTEMPT_NOT_GRADABLE"
	ErrAttemptBusy          ErrCode = "ATTEMPT_BUSY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrLearnerAccessOnly:
		return "This resource is restricted to learners."
	case ErrInstructorAccessOnly:
		return "This resource is restricted to instructors."
	case ErrUnauthorizedGrader:
		return "You are not an instructor of this assessment."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidAnswer:
		return "The answer does not match the question type."
	case ErrInvalidPoints:
		return "Points must be between 0 and the question's maximum."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrAssessmentNotFound:
		return "Assessment not found."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrQuestionNotFound:
		return "Question not found in this attempt."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAttemptLimitExceeded:
		return "Maximum attempts reached for this assessment."
	case ErrAttemptNotActive:
		return "This attempt is no longer in progress."
	case ErrAttemptNotGradable:
		return "This attempt has not been submitted for grading."
	case ErrAttemptBusy:
		return "This attempt is being updated. Please retry."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
