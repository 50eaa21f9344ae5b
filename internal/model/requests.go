package model

import "encoding/json"

// RecordAnswerRequest is the payload for saving one answer.
type RecordAnswerRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// SubmitAssessmentRequest carries the final answers keyed by question id.
type SubmitAssessmentRequest struct {
	Answers map[string]json.RawMessage `json:"answers" binding:"omitempty,dive,keys,uuid,endkeys"`
}

// GradeQuestionRequest is the instructor's manual grade for one question.
type GradeQuestionRequest struct {
	PointsEarned *float64 `json:"pointsEarned" binding:"required"`
	Feedback     *string  `json:"feedback" binding:"omitempty,max=5000"`
}

// GradingQueueQuery filters the instructor grading queue.
type GradingQueueQuery struct {
	AssessmentID string `form:"assessment_id" binding:"omitempty,uuid"`
	CourseID     string `form:"course_id" binding:"omitempty,uuid"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PerPage      int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}
