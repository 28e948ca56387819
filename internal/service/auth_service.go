package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/course-platform/internal/auth"
	"github.com/spec-kit/course-platform/internal/config"
	"github.com/spec-kit/course-platform/internal/domain"
	"github.com/spec-kit/course-platform/internal/events"
	"github.com/spec-kit/course-platform/internal/persistence"
	"github.com/spec-kit/course-platform/internal/repository"
)

// Account flow failures.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRoleNotAllowed     = errors.New("role cannot be self-assigned")
	ErrInvalidOTP         = errors.New("invalid or expired code")
)

const (
	otpKeyPrefix = "OTP:"
	otpDigits    = 6

	uniqueViolation = "23505"
)

// AuthResult is returned by flows that hand a token to the caller.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
	// Reused is set when Login handed back the stored session token.
	Reused bool
}

// AuthService coordinates registration, login and password recovery.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	sessions   *SessionRegistry
	otps       persistence.KeyValueStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	otpTTL     time.Duration
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Tokens     *auth.TokenManager
	Sessions   *SessionRegistry
	OTPs       persistence.KeyValueStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		sessions:   deps.Sessions,
		otps:       deps.OTPs,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		otpTTL:     cfg.OTPTTL(),
	}
}

// Register creates an instructor or student account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, name, email, password, role string) (*AuthResult, error) {
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if parsed == domain.RoleAdmin {
		return nil, ErrRoleNotAllowed
	}

	email = normalizeEmail(email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         parsed,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("account registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.openSession(ctx, user)
}

// Login verifies credentials. A still-valid stored token is handed back
// instead of minting a new one.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	stored, ok, err := s.sessions.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		claims, err := s.tokens.Parse(stored)
		if err == nil && claims.Subject == user.Email {
			return &AuthResult{User: user, Token: stored, ExpiresAt: claims.ExpiresAt.Time, Reused: true}, nil
		}
	}
	return s.openSession(ctx, user)
}

// Logout ends the active session of principal.
func (s *AuthService) Logout(ctx context.Context, principal *domain.Principal) error {
	if principal == nil {
		return nil
	}
	return s.sessions.Delete(ctx, principal.ID)
}

// ForgotPassword issues a one-time code for email. Unknown addresses are
// accepted silently so the endpoint does not reveal which accounts exist.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.otps.Set(ctx, otpKey(email), code, s.otpTTL); err != nil {
		return err
	}

	if s.dispatcher != nil {
		payload := events.PasswordResetRequestedPayload{
			Email:     user.Email,
			Code:      code,
			ExpiresAt: time.Now().Add(s.otpTTL).UTC(),
		}
		actor := events.ActorFromPrincipal(domain.PrincipalFromUser(user))
		_ = s.dispatcher.Publish(ctx, events.New(events.EventPasswordResetRequested, actor, payload))
	}
	return nil
}

// VerifyOTP checks code against the one issued for email without consuming it.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	stored, err := s.otps.Get(ctx, otpKey(normalizeEmail(email)))
	if errors.Is(err, persistence.ErrKeyNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		return ErrInvalidOTP
	}
	return nil
}

// ResetPassword replaces the password after a successful code check, then
// consumes the code and ends any open session.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if err := s.VerifyOTP(ctx, email, code); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidOTP
		}
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if err := s.otps.Delete(ctx, otpKey(email)); err != nil {
		s.logger.Warn("failed to consume reset code", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if err := s.sessions.Delete(ctx, user.ID); err != nil {
		s.logger.Warn("failed to end session after reset", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	s.logger.Info("password reset", zap.Int64("user_id", user.ID))
	return nil
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, user.ID, token.Value, s.tokens.TTL()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &AuthResult{User: user, Token: token.Value, ExpiresAt: token.ExpiresAt}, nil
}

func generateOTP() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func otpKey(email string) string {
	return otpKeyPrefix + email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
