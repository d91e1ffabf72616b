package dto

import (
	"time"

	"authgate/internal/service"
)

type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=150"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// OTPRequest carries a submitted code. Emptiness is judged by the service so
// that a missing pending login is reported before a missing code.
type OTPRequest struct {
	OTPCode string `json:"otp_code" form:"otp_code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginResponse struct {
	Message           string        `json:"message"`
	TwoFactorRequired bool          `json:"two_factor_required,omitempty"`
	User              *UserResponse `json:"user,omitempty"`
}

type UserResponse struct {
	ID               string    `json:"id"`
	Username         string    `json:"username" form:"username"`
	Email            string    `json:"email" form:"email"`
	TwoFactorEnabled bool      `json:"is_2fa_enabled"`
	IsActive         bool      `json:"is_active"`
	DateJoined       time.Time `json:"date_joined"`
}

func UserResponseFromProfile(profile *service.UserProfile) *UserResponse {
	if profile == nil {
		return nil
	}
	return &UserResponse{
		ID:               profile.ID.String(),
		Username:         profile.Username,
		Email:            profile.Email,
		TwoFactorEnabled: profile.TwoFactorEnabled,
		IsActive:         profile.IsActive,
		DateJoined:       profile.DateJoined,
	}
}
