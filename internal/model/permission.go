package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionAttemptsGrade allows grading attempts of assessments the instructor owns.
	PermissionAttemptsGrade Permission = "attempts:grade"

	// PermissionAttemptsGradeAll allows grading any attempt regardless of ownership.
	PermissionAttemptsGradeAll Permission = "attempts:grade_all"

	// PermissionAssessmentsCache allows invalidating cached assessment definitions.
	PermissionAssessmentsCache Permission = "assessments:cache"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionAttemptsGrade,
	PermissionAttemptsGradeAll,
	PermissionAssessmentsCache,
}
