package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/course-platform/internal/domain"
	apperrors "github.com/spec-kit/course-platform/pkg/util"
)

type stubIdentities map[string]*domain.Principal

func (s stubIdentities) ResolveIdentity(_ context.Context, subject string) (*domain.Principal, error) {
	principal, ok := s[subject]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return principal, nil
}

type stubSessions struct {
	active map[int64]string
	err    error
}

func (s stubSessions) IsActive(_ context.Context, userID int64, token string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.active[userID] == token, nil
}

var (
	alice = &domain.Principal{ID: 1, Email: "alice@example.com", Role: domain.RoleStudent}
	bob   = &domain.Principal{ID: 2, Email: "bob@example.com", Role: domain.RoleInstructor}
)

func renderError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		de := apperrors.FromStatus(fe.Code, fe.Message)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
	}
	de := apperrors.ToDomainError(err)
	return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
}

func newTestApp(t *testing.T, opts ...MiddlewareOption) (*fiber.App, *TokenManager, *fakeClock) {
	t.Helper()
	clock := newTestClock()
	tm, err := NewTokenManager(testSecret, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	gate := NewAuthMiddleware(tm, stubIdentities{alice.Email: alice, bob.Email: bob}, opts...)

	app := fiber.New(fiber.Config{ErrorHandler: renderError})
	app.Use(gate.Handle)
	app.Get("/api/auth/login", func(c *fiber.Ctx) error {
		return c.SendString("open")
	})
	app.Get("/whoami", RequireAuthenticated(), func(c *fiber.Ctx) error {
		fromLocals, _ := PrincipalFromContext(c)
		fromCtx, ok := PrincipalFrom(c.UserContext())
		if !ok || fromCtx != fromLocals {
			return apperrors.NewInternalError(errors.New("principal mismatch"))
		}
		return c.SendString(fromLocals.Email)
	})
	app.Get("/instructors", RequireRole(domain.RoleInstructor, domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tm, clock
}

func doRequest(t *testing.T, app *fiber.App, path, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func issue(t *testing.T, tm *TokenManager, subject string) string {
	t.Helper()
	token, err := tm.Generate(subject)
	require.NoError(t, err)
	return token.Value
}

func TestGateBypassPaths(t *testing.T) {
	app, _, _ := newTestApp(t, WithBypassPaths("/api/auth/login", " "))

	status, body := doRequest(t, app, "/api/auth/login", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "open", body)

	status, body = doRequest(t, app, "/api/auth/login", "Bearer not-a-token")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "open", body)
}

func TestGateBypassMatchesWholeSegments(t *testing.T) {
	app, tm, _ := newTestApp(t, WithBypassPaths("/who", "/api/auth/"))

	status, _ := doRequest(t, app, "/whoami", "Bearer not-a-token")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doRequest(t, app, "/whoami", "Bearer "+issue(t, tm, alice.Email))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.Email, body)

	status, body = doRequest(t, app, "/api/auth/login", "Bearer not-a-token")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "open", body)
}

func TestGateAttachesPrincipal(t *testing.T) {
	app, tm, _ := newTestApp(t)

	status, body := doRequest(t, app, "/whoami", "Bearer "+issue(t, tm, alice.Email))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.Email, body)
}

func TestGateWithoutHeaderLeavesRequestAnonymous(t *testing.T) {
	app, tm, _ := newTestApp(t)

	status, _ := doRequest(t, app, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doRequest(t, app, "/whoami", "Basic "+issue(t, tm, alice.Email))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGateRejectsBadTokens(t *testing.T) {
	app, tm, clock := newTestApp(t)

	status, body := doRequest(t, app, "/whoami", "Bearer garbage")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, apperrors.CodeTokenInvalid)

	other, err := NewTokenManager("a-completely-different-secret-value", time.Hour)
	require.NoError(t, err)
	status, _ = doRequest(t, app, "/whoami", "Bearer "+issue(t, other, alice.Email))
	assert.Equal(t, http.StatusBadRequest, status)

	expired := issue(t, tm, alice.Email)
	clock.now = clock.now.Add(2 * time.Hour)
	status, body = doRequest(t, app, "/whoami", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, apperrors.CodeTokenExpired)
}

func TestGateUnknownIdentity(t *testing.T) {
	app, tm, _ := newTestApp(t)

	status, _ := doRequest(t, app, "/whoami", "Bearer "+issue(t, tm, "ghost@example.com"))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGateSessionChecker(t *testing.T) {
	clock := newTestClock()
	tm, err := NewTokenManager(testSecret, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	current := issue(t, tm, alice.Email)
	stale := issue(t, tm, alice.Email)

	app, _, _ := newTestApp(t, WithSessionChecker(stubSessions{active: map[int64]string{alice.ID: current}}))
	status, _ := doRequest(t, app, "/whoami", "Bearer "+current)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doRequest(t, app, "/whoami", "Bearer "+stale)
	assert.Equal(t, http.StatusUnauthorized, status)

	app, _, _ = newTestApp(t, WithSessionChecker(stubSessions{err: errors.New("redis down")}))
	status, _ = doRequest(t, app, "/whoami", "Bearer "+current)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestRequireRole(t *testing.T) {
	app, tm, _ := newTestApp(t)

	status, _ := doRequest(t, app, "/instructors", "Bearer "+issue(t, tm, bob.Email))
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doRequest(t, app, "/instructors", "Bearer "+issue(t, tm, alice.Email))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doRequest(t, app, "/instructors", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGateIsolatesConcurrentRequests(t *testing.T) {
	app, tm, _ := newTestApp(t)
	tokens := map[string]string{
		alice.Email: issue(t, tm, alice.Email),
		bob.Email:   issue(t, tm, bob.Email),
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for email, token := range tokens {
			wg.Add(1)
			go func(email, token string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
				req.Header.Set(fiber.HeaderAuthorization, fmt.Sprintf("Bearer %s", token))
				resp, err := app.Test(req, -1)
				if !assert.NoError(t, err) {
					return
				}
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, email, string(body))
			}(email, token)
		}
	}
	wg.Wait()
}
