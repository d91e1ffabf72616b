package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPDevice holds the pending email code of a user. Code and IssuedAt are
// overwritten on every issuance; Code is cleared once it has been used.
type OTPDevice struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`

	IsConfirmed bool    `gorm:"not null;default:false"`
	Code        *string `gorm:"type:varchar(6)"`
	IssuedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *OTPDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
