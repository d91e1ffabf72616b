package repository

import (
	"context"
	"errors"
	"time"

	"authgate/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OTPDeviceRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.OTPDevice, error)
	UpsertCode(ctx context.Context, userID uuid.UUID, code string, issuedAt time.Time) error
	ConsumeCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	Confirm(ctx context.Context, userID uuid.UUID) error
}

type otpDeviceRepository struct {
	db *gorm.DB
}

func NewOTPDeviceRepository(db *gorm.DB) OTPDeviceRepository {
	return &otpDeviceRepository{db: db}
}

func (r *otpDeviceRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.OTPDevice, error) {
	var device entity.OTPDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&device).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &device, err
}

// UpsertCode creates the device on first use and otherwise replaces its code,
// leaving is_confirmed untouched.
func (r *otpDeviceRepository) UpsertCode(ctx context.Context, userID uuid.UUID, code string, issuedAt time.Time) error {
	device := &entity.OTPDevice{
		UserID:   userID,
		Code:     &code,
		IssuedAt: &issuedAt,
	}
	return r.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "issued_at", "updated_at"}),
		}).
		Create(device).Error
}

// ConsumeCode clears the stored code only if it still equals code, so a code
// can be used at most once even under concurrent requests.
func (r *otpDeviceRepository) ConsumeCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.OTPDevice{}).
		Where("user_id = ? AND code = ?", userID, code).
		Update("code", nil)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *otpDeviceRepository) Confirm(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.OTPDevice{}).
		Where("user_id = ?", userID).
		Update("is_confirmed", true).
		Error
}
