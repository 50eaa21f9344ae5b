package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AssessmentDefinitionKey holds the JSON definition of an assessment, answer keys included.
// Never serve this value to learners directly.
func (r *CacheKeyStruct) AssessmentDefinitionKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:definition", assessmentID)
}

// AttemptAnswersKey returns the hash of buffered answers (question id -> raw JSON).
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptLockKey returns the mutual-exclusion key for a single attempt.
func (r *CacheKeyStruct) AttemptLockKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:lock", attemptID)
}

// AttemptStartLockKey serializes start requests for one (user, assessment) pair.
func (r *CacheKeyStruct) AttemptStartLockKey(assessmentID string, userID int) string {
	return fmt.Sprintf("user:%d:assessment:%s:start_lock", userID, assessmentID)
}

var CacheKey = NewCacheKeyStruct()
