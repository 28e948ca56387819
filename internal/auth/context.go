package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/course-platform/internal/domain"
)

type contextKey string

const (
	principalKey = "auth_principal"

	principalContextKey contextKey = "authenticatedPrincipal"
)

// ContextWithPrincipal stores the authenticated principal in ctx.
func ContextWithPrincipal(ctx context.Context, principal *domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFrom retrieves the principal stored by ContextWithPrincipal.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// PrincipalFromContext retrieves the authenticated principal of a Fiber request.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok && principal != nil
}
