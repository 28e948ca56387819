// Package authz decides whether a principal may read a course asset.
//
// Decisions are computed on every call. Enrollment and ownership change
// between requests, so nothing here is cached.
package authz

import (
	"context"
	"fmt"

	"github.com/spec-kit/course-platform/internal/domain"
)

// EnrollmentChecker reports whether a student is enrolled in a course.
type EnrollmentChecker interface {
	Exists(ctx context.Context, studentID, courseID int64) (bool, error)
}

// Policy is the resource-level access policy for course content.
type Policy struct {
	enrollments EnrollmentChecker
}

// NewPolicy builds a policy that consults enrollments for students.
func NewPolicy(enrollments EnrollmentChecker) *Policy {
	return &Policy{enrollments: enrollments}
}

// Decide evaluates the allow table for principal against resource.
// An error is returned only when enrollment state could not be read.
func (p *Policy) Decide(ctx context.Context, principal *domain.Principal, resource domain.ResourceDescriptor) (domain.AccessDecision, error) {
	if principal == nil {
		return domain.Denied(domain.DenyRoleNotPermitted), nil
	}

	switch principal.Role {
	case domain.RoleAdmin:
		return domain.Allowed(), nil
	case domain.RoleInstructor:
		if resource.CourseInstructorID == principal.ID {
			return domain.Allowed(), nil
		}
		return domain.Denied(domain.DenyNotOwner), nil
	case domain.RoleStudent:
		enrolled, err := p.enrollments.Exists(ctx, principal.ID, resource.OwnerCourseID)
		if err != nil {
			return domain.AccessDecision{}, fmt.Errorf("check enrollment: %w", err)
		}
		if enrolled {
			return domain.Allowed(), nil
		}
		return domain.Denied(domain.DenyNotEnrolled), nil
	default:
		return domain.Denied(domain.DenyRoleNotPermitted), nil
	}
}
