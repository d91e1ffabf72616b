package service

import (
	"time"

	"authgate/internal/entity"

	"github.com/google/uuid"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username  string
	Password  string
	IPAddress *string
}

type LoginResult struct {
	TwoFactorRequired bool
	User              *UserProfile
}

type UserProfile struct {
	ID               uuid.UUID
	Username         string
	Email            string
	TwoFactorEnabled bool
	IsActive         bool
	DateJoined       time.Time
}

func profileFromUser(user *entity.User) *UserProfile {
	return &UserProfile{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		TwoFactorEnabled: user.TwoFactorEnabled(),
		IsActive:         user.IsActive,
		DateJoined:       user.DateJoined,
	}
}
