package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/course-platform/internal/domain"
	"github.com/spec-kit/course-platform/internal/repository"
)

// ErrIdentityNotFound is returned when a valid token names no known account.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityResolver maps a validated token subject to a principal.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, subject string) (*domain.Principal, error)
}

// UserIdentityResolver resolves subjects (account emails) against the user store.
type UserIdentityResolver struct {
	users repository.UserRepository
}

// NewUserIdentityResolver constructs a resolver backed by users.
func NewUserIdentityResolver(users repository.UserRepository) *UserIdentityResolver {
	return &UserIdentityResolver{users: users}
}

// ResolveIdentity looks the subject up by email.
func (r *UserIdentityResolver) ResolveIdentity(ctx context.Context, subject string) (*domain.Principal, error) {
	user, err := r.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return domain.PrincipalFromUser(user), nil
}
