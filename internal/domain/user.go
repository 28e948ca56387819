package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of platform roles.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleStudent    Role = "STUDENT"
)

// ParseRole maps a stored or submitted role name onto the closed role set.
func ParseRole(value string) (Role, error) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(value))); role {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// User is the account record owned by the user store.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the identity resolved for one request.
type Principal struct {
	ID    int64
	Email string
	Role  Role
}

// PrincipalFromUser projects a user onto its request identity.
func PrincipalFromUser(u *User) *Principal {
	return &Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}
