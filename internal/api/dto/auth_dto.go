package dto

import "time"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=ADMIN INSTRUCTOR STUDENT admin instructor student"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest starts password recovery.
type ForgotPasswordRequest struct {
	Email string `json:"email" query:"email" validate:"required,email"`
}

// VerifyOTPRequest checks a recovery code.
type VerifyOTPRequest struct {
	Email string `json:"email" query:"email" validate:"required,email"`
	OTP   string `json:"otp" query:"otp" validate:"required,len=6,numeric"`
}

// ResetPasswordRequest completes password recovery.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyOTPResponse reports a successful code check.
type VerifyOTPResponse struct {
	Valid bool `json:"valid"`
}

// MessageResponse acknowledges flows that return no data.
type MessageResponse struct {
	Message string `json:"message"`
}
