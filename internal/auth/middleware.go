package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/course-platform/pkg/util"
)

// SessionChecker reports whether a token is still the active session of a user.
type SessionChecker interface {
	IsActive(ctx context.Context, userID int64, token string) (bool, error)
}

// AuthMiddleware validates bearer tokens and attaches principals to the request.
type AuthMiddleware struct {
	tokens     *TokenManager
	identities IdentityResolver
	sessions   SessionChecker
	bypass     []string
	logger     *zap.Logger
}

// MiddlewareOption customizes an AuthMiddleware.
type MiddlewareOption func(*AuthMiddleware)

// WithBypassPaths sets the path prefixes served without authentication.
// A prefix matches itself and anything below it.
func WithBypassPaths(prefixes ...string) MiddlewareOption {
	return func(m *AuthMiddleware) {
		for _, prefix := range prefixes {
			if prefix = strings.TrimSpace(prefix); prefix != "" {
				m.bypass = append(m.bypass, prefix)
			}
		}
	}
}

// WithSessionChecker requires every token to match the user's stored session.
func WithSessionChecker(sessions SessionChecker) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.sessions = sessions
	}
}

// WithLogger sets the logger used for rejected requests.
func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.logger = logger
	}
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, identities IdentityResolver, opts ...MiddlewareOption) *AuthMiddleware {
	m := &AuthMiddleware{tokens: tokens, identities: identities, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle authenticates the request when it carries a bearer token.
// Requests without one continue unauthenticated; role guards reject them later.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.isBypassed(c.Path()) {
		return c.Next()
	}

	token, present := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !present {
		return c.Next()
	}

	subject, err := m.tokens.Validate(token)
	if err != nil {
		m.logger.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
		if errors.Is(err, ErrTokenExpired) {
			return apperrors.NewTokenExpired(err)
		}
		return apperrors.NewTokenInvalid(err)
	}

	ctx := c.UserContext()
	principal, err := m.identities.ResolveIdentity(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return apperrors.NewUnauthorized("account not found")
		}
		return apperrors.MapError(err)
	}

	if m.sessions != nil {
		active, err := m.sessions.IsActive(ctx, principal.ID, token)
		if err != nil {
			return apperrors.MapError(err)
		}
		if !active {
			return apperrors.NewUnauthorized("session is no longer active")
		}
	}

	c.Locals(principalKey, principal)
	c.SetUserContext(ContextWithPrincipal(ctx, principal))
	return c.Next()
}

// isBypassed matches whole path segments, so "/health" covers "/health/ready"
// but not "/healthcheck".
func (m *AuthMiddleware) isBypassed(path string) bool {
	for _, prefix := range m.bypass {
		prefix = strings.TrimSuffix(prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// bearerToken extracts the credential of a "Bearer" Authorization header.
// Other schemes are treated as if no header had been sent.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
