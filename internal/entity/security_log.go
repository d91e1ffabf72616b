package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SecurityAction string

const (
	Register        SecurityAction = "register"
	Activate        SecurityAction = "activate"
	LoginSuccess    SecurityAction = "login_success"
	LoginFailed     SecurityAction = "login_failed"
	LoginPending2FA SecurityAction = "login_2fa_pending"
	MFAFailed       SecurityAction = "mfa_failed"
	MFAEnabled      SecurityAction = "mfa_enabled"
	Logout          SecurityAction = "logout"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(32);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

func (l *SecurityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
