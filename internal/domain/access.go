package domain

// ResourceKind enumerates protected asset kinds.
type ResourceKind string

const (
	ResourceVideo    ResourceKind = "video"
	ResourceDocument ResourceKind = "document"
)

// ResourceDescriptor holds the ownership and linkage facts of a protected asset.
type ResourceDescriptor struct {
	Kind               ResourceKind
	ResourceID         int64
	OwnerCourseID      int64
	CourseInstructorID int64
}

// DenyReason explains a denied access decision. It is only ever logged.
type DenyReason string

const (
	DenyNone             DenyReason = ""
	DenyNotOwner         DenyReason = "NotOwner"
	DenyNotEnrolled      DenyReason = "NotEnrolled"
	DenyRoleNotPermitted DenyReason = "RoleNotPermitted"
)

// AccessDecision is the outcome of one authorization check.
type AccessDecision struct {
	Allow  bool
	Reason DenyReason
}

// Allowed returns a positive decision.
func Allowed() AccessDecision {
	return AccessDecision{Allow: true}
}

// Denied returns a negative decision carrying its reason.
func Denied(reason DenyReason) AccessDecision {
	return AccessDecision{Reason: reason}
}
