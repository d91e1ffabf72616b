package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("invalid input")
	ErrMissingFields         = fmt.Errorf("%w: all fields are required", ErrValidation)
	ErrInvalidEmail          = fmt.Errorf("%w: email address is malformed", ErrValidation)
	ErrUsernameTaken         = errors.New("username is already taken")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is not activated")
	ErrActivationInvalid     = errors.New("activation link is invalid or has expired")
	ErrNoPendingVerification = errors.New("no user to verify")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidOTP            = errors.New("invalid or expired otp")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrInvalidUserRef        = errors.New("invalid user reference")
)
