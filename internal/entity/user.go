package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string    `gorm:"type:varchar(255);not null"`
	PasswordHash string    `gorm:"type:text;not null"`

	IsActive   bool      `gorm:"not null;default:false"`
	DateJoined time.Time `gorm:"not null"`
	UpdatedAt  time.Time

	OTPDevice *OTPDevice
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	return nil
}

// TwoFactorEnabled reports whether the user has a confirmed OTP device.
// The device must have been preloaded.
func (u *User) TwoFactorEnabled() bool {
	return u.OTPDevice != nil && u.OTPDevice.IsConfirmed
}
