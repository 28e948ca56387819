package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/course-platform/internal/api/http/handlers"
	"github.com/spec-kit/course-platform/internal/auth"
	"github.com/spec-kit/course-platform/internal/authz"
	"github.com/spec-kit/course-platform/internal/config"
	"github.com/spec-kit/course-platform/internal/content"
	"github.com/spec-kit/course-platform/internal/domain"
	"github.com/spec-kit/course-platform/internal/events"
	"github.com/spec-kit/course-platform/internal/observability"
	"github.com/spec-kit/course-platform/internal/persistence"
	"github.com/spec-kit/course-platform/internal/repository"
	"github.com/spec-kit/course-platform/internal/service"
)

type memoryUsers struct {
	mu    sync.Mutex
	users []*domain.User
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = int64(len(m.users) + 1)
	copied := *user
	m.users = append(m.users, &copied)
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *memoryUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryContent struct {
	videos    map[int64]*domain.ContentItem
	documents map[int64]*domain.ContentItem
}

func (m memoryContent) GetVideo(_ context.Context, id int64) (*domain.ContentItem, error) {
	if item, ok := m.videos[id]; ok {
		return item, nil
	}
	return nil, pgx.ErrNoRows
}

func (m memoryContent) GetDocument(_ context.Context, id int64) (*domain.ContentItem, error) {
	if item, ok := m.documents[id]; ok {
		return item, nil
	}
	return nil, pgx.ErrNoRows
}

type memoryEnrollments struct {
	mu       sync.Mutex
	enrolled map[[2]int64]bool
}

func (m *memoryEnrollments) Exists(_ context.Context, studentID, courseID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrolled[[2]int64{studentID, courseID}], nil
}

func (m *memoryEnrollments) enroll(studentID, courseID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolled[[2]int64{studentID, courseID}] = true
}

var (
	_ repository.UserRepository       = (*memoryUsers)(nil)
	_ repository.ContentRepository    = memoryContent{}
	_ repository.EnrollmentRepository = (*memoryEnrollments)(nil)
)

type platform struct {
	app         *fiber.App
	users       *memoryUsers
	enrollments *memoryEnrollments
	upstream    *httptest.Server
	resetCodes  map[string]string
}

func newPlatform(t *testing.T, requireSession bool) *platform {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/intro.mp4":
			_, _ = w.Write([]byte("video-bytes"))
		case "/syllabus.pdf":
			_, _ = w.Write([]byte("%PDF-1.7 syllabus"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := persistence.NewRedisStore(client, "test")

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(nil)
	resetCodes := map[string]string{}
	dispatcher.Subscribe(events.EventPasswordResetRequested, func(_ context.Context, e events.Event) error {
		payload := e.Payload.(events.PasswordResetRequestedPayload)
		resetCodes[payload.Email] = payload.Code
		return nil
	})

	users := &memoryUsers{}
	enrollments := &memoryEnrollments{enrolled: map[[2]int64]bool{}}
	contentRepo := memoryContent{
		videos: map[int64]*domain.ContentItem{
			1: {ID: 1, Kind: domain.ResourceVideo, URL: upstream.URL + "/intro.mp4", Filename: "intro.mp4", CourseID: 10, InstructorID: 1},
		},
		documents: map[int64]*domain.ContentItem{
			1: {ID: 1, Kind: domain.ResourceDocument, URL: upstream.URL + "/syllabus.pdf", Filename: "syllabus.pdf", CourseID: 10, InstructorID: 1},
			2: {ID: 2, Kind: domain.ResourceDocument, URL: upstream.URL + "/gone.pdf", Filename: "gone.pdf", CourseID: 10, InstructorID: 1},
		},
	}

	tokens, err := auth.NewTokenManager("router-test-secret-router-test-secret", time.Hour)
	require.NoError(t, err)
	sessions := service.NewSessionRegistry(store)
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, service.AuthDependencies{
		Users:      users,
		Tokens:     tokens,
		Sessions:   sessions,
		OTPs:       store,
		Dispatcher: dispatcher,
	})
	contentService := service.NewContentService(service.ContentDependencies{
		Content:    contentRepo,
		Policy:     authz.NewPolicy(enrollments),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})

	opts := []auth.MiddlewareOption{auth.WithBypassPaths(
		"/api/auth/login", "/api/auth/register", "/api/auth/forgot-password",
		"/api/auth/verify-otp", "/api/auth/reset-password", "/health",
	)}
	if requireSession {
		opts = append(opts, auth.WithSessionChecker(sessions))
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("course-platform", "test", nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Content:        handlers.NewContentHandler(contentService, content.NewProxy(content.Config{}), logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, auth.NewUserIdentityResolver(users), opts...),
	})

	return &platform{app: app, users: users, enrollments: enrollments, upstream: upstream, resetCodes: resetCodes}
}

func (p *platform) do(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := p.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (p *platform) register(t *testing.T, name, email, role string) (int64, string) {
	t.Helper()
	resp, raw := p.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password123", "role": role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var out struct {
		Data struct {
			User struct {
				ID int64 `json:"id"`
			} `json:"user"`
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.Data.User.ID, out.Data.Auth.Token
}

func TestContentAccessEndToEnd(t *testing.T) {
	p := newPlatform(t, false)
	_, instructorToken := p.register(t, "Ines", "ines@example.com", "INSTRUCTOR")
	_, otherInstructorToken := p.register(t, "Otto", "otto@example.com", "INSTRUCTOR")
	studentID, studentToken := p.register(t, "Sam", "sam@example.com", "STUDENT")

	resp, raw := p.do(t, http.MethodGet, "/api/secure/content/video/1", instructorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video-bytes", string(raw))
	assert.Equal(t, "video/mp4", resp.Header.Get(fiber.HeaderContentType))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	resp, raw = p.do(t, http.MethodGet, "/api/secure/content/video/1", otherInstructorToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, raw)

	resp, _ = p.do(t, http.MethodGet, "/api/secure/content/document/1", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	p.enrollments.enroll(studentID, 10)
	resp, raw = p.do(t, http.MethodGet, "/api/secure/content/document/1", studentToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "%PDF-1.7 syllabus", string(raw))
	assert.Equal(t, `inline; filename="syllabus.pdf"`, resp.Header.Get(fiber.HeaderContentDisposition))

	resp, raw = p.do(t, http.MethodGet, "/api/secure/content/document/2", studentToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, raw)

	resp, _ = p.do(t, http.MethodGet, "/api/secure/content/video/42", studentToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateStatusCodes(t *testing.T) {
	p := newPlatform(t, false)

	resp, raw := p.do(t, http.MethodGet, "/api/secure/content/video/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(raw), "UNAUTHORIZED")

	resp, raw = p.do(t, http.MethodGet, "/api/secure/content/video/1", "not.a.jwt", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "TOKEN_INVALID")

	resp, _ = p.do(t, http.MethodGet, "/health/live", "not.a.jwt", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = p.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(raw), "NOT_FOUND")
}

func TestAuthEndpoints(t *testing.T) {
	p := newPlatform(t, true)
	_, token := p.register(t, "Lia", "lia@example.com", "STUDENT")

	resp, raw := p.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Lia", "email": "lia@example.com", "password": "password123", "role": "STUDENT",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(raw))

	resp, _ = p.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Root", "email": "root@example.com", "password": "password123", "role": "ADMIN",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw = p.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "VALIDATION_FAILED")

	resp, _ = p.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "lia@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, raw = p.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "lia@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), token)
	assert.Contains(t, string(raw), "User already logged in, token refreshed")

	resp, _ = p.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = p.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = p.do(t, http.MethodGet, "/api/secure/content/video/1", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordRecoveryEndpoints(t *testing.T) {
	p := newPlatform(t, true)
	_, oldToken := p.register(t, "Max", "max@example.com", "STUDENT")

	resp, _ := p.do(t, http.MethodPost, "/api/auth/forgot-password?email=max@example.com", "", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	code := p.resetCodes["max@example.com"]
	require.Len(t, code, 6)

	resp, _ = p.do(t, http.MethodPost, "/api/auth/forgot-password?email=nobody@example.com", "", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, raw := p.do(t, http.MethodPost, "/api/auth/verify-otp?email=max@example.com&otp="+code, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"valid":true}}`, string(raw))

	resp, _ = p.do(t, http.MethodPost, "/api/auth/verify-otp?email=max@example.com&otp=000000x", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = p.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"email": "max@example.com", "otp": code, "newPassword": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = p.do(t, http.MethodGet, "/api/secure/content/video/1", oldToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = p.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "max@example.com", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAuthRateLimiter(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/limited", authRateLimiter(2), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil), -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
