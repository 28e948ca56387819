package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/course-platform/internal/api/dto"
	"github.com/spec-kit/course-platform/internal/auth"
	"github.com/spec-kit/course-platform/internal/service"
	apperrors "github.com/spec-kit/course-platform/pkg/util"
)

// AuthHandler exposes account and password recovery endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	validate *validator.Validate
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService, validate: validator.New()}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return mapAuthError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": toUserResponse(res),
			"auth": dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
		},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	message := "login successful"
	if res.Reused {
		message = "User already logged in, token refreshed"
	}
	return c.JSON(fiber.Map{
		"message": message,
		"data": fiber.Map{
			"user": toUserResponse(res),
			"auth": dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
		},
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "logged out"}})
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return mapAuthError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "if the account exists, a code has been sent"},
	})
}

// VerifyOTP handles POST /api/auth/verify-otp.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.VerifyOTP(c.UserContext(), req.Email, req.OTP); err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"data": dto.VerifyOTPResponse{Valid: true}})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return mapAuthError(err)
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "password updated"}})
}

// bind reads the JSON body, then any query parameters, then validates.
func (h *AuthHandler) bind(c *fiber.Ctx, req any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperrors.NewBadRequest("invalid payload")
		}
	}
	if err := c.QueryParser(req); err != nil {
		return apperrors.NewBadRequest("invalid query")
	}
	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperrors.NewBadRequest("invalid payload")
		}
		details := make(map[string]any, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
		}
		return apperrors.NewValidationError("request validation failed", details)
	}
	return nil
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized(err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, service.ErrRoleNotAllowed):
		return apperrors.NewForbidden(err.Error())
	case errors.Is(err, service.ErrInvalidOTP):
		return apperrors.NewBadRequest(err.Error())
	default:
		return apperrors.MapError(err)
	}
}

func toUserResponse(res *service.AuthResult) dto.UserResponse {
	return dto.UserResponse{
		ID:    res.User.ID,
		Name:  res.User.Name,
		Email: res.User.Email,
		Role:  string(res.User.Role),
	}
}
