package dto

import (
	"errors"

	"authgate/internal/service"
)

// Client-facing texts. More specific errors come before the ones they wrap.
var errorMessages = []struct {
	err     error
	message string
}{
	{service.ErrMissingFields, "All fields are required."},
	{service.ErrInvalidEmail, "Enter a valid email address."},
	{service.ErrValidation, "Invalid input."},
	{service.ErrUsernameTaken, "Username is already taken."},
	{service.ErrInvalidCredentials, "Invalid credentials"},
	{service.ErrAccountInactive, "Please confirm your email to activate your account."},
	{service.ErrActivationInvalid, "Activation link is invalid or has expired."},
	{service.ErrNoPendingVerification, "No user to verify"},
	{service.ErrUserNotFound, "User not found"},
	{service.ErrInvalidOTP, "Invalid or expired OTP"},
	{service.ErrNotAuthenticated, "Authentication credentials were not provided."},
}

// ErrorMessage returns the response text for a known service error.
func ErrorMessage(err error) (string, bool) {
	for _, entry := range errorMessages {
		if errors.Is(err, entry.err) {
			return entry.message, true
		}
	}
	return "", false
}
