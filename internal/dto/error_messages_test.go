package dto_test

import (
	"errors"
	"fmt"
	"testing"

	"authgate/internal/dto"
	"authgate/internal/service"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{service.ErrMissingFields, "All fields are required."},
		{service.ErrInvalidEmail, "Enter a valid email address."},
		{service.ErrValidation, "Invalid input."},
		{fmt.Errorf("register: %w", service.ErrUsernameTaken), "Username is already taken."},
		{service.ErrInvalidCredentials, "Invalid credentials"},
		{service.ErrAccountInactive, "Please confirm your email to activate your account."},
		{service.ErrNoPendingVerification, "No user to verify"},
		{service.ErrInvalidOTP, "Invalid or expired OTP"},
		{service.ErrNotAuthenticated, "Authentication credentials were not provided."},
	}
	for _, tc := range cases {
		got, ok := dto.ErrorMessage(tc.err)
		require.True(t, ok, tc.err)
		require.Equal(t, tc.want, got)
	}

	_, ok := dto.ErrorMessage(errors.New("connection refused"))
	require.False(t, ok)
}
