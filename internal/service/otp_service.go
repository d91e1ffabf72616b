package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"authgate/internal/entity"
	"authgate/internal/metrics"
	"authgate/internal/repository"

	"github.com/sirupsen/logrus"
)

const defaultOTPTTL = 10 * time.Minute

type OTPService struct {
	devices   repository.OTPDeviceRepository
	generator OTPGenerator
	notifier  Notifier
	clock     Clock
	ttl       time.Duration
	logger    logrus.FieldLogger
}

func NewOTPService(
	devices repository.OTPDeviceRepository,
	generator OTPGenerator,
	notifier Notifier,
	clock Clock,
	ttl time.Duration,
	logger logrus.FieldLogger,
) *OTPService {
	if generator == nil {
		generator = RandomOTPGenerator{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OTPService{
		devices:   devices,
		generator: generator,
		notifier:  notifier,
		clock:     clock,
		ttl:       ttl,
		logger:    logger,
	}
}

// IssueOTP stores a fresh code on the user's device, replacing any earlier
// one, and emails it to the user.
func (s *OTPService) IssueOTP(ctx context.Context, user *entity.User, purpose string) error {
	code, err := s.generator.Generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.devices.UpsertCode(ctx, user.ID, code, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	msg := otpMessage(user.Username, code, s.ttl)
	if err := s.notifier.Send(ctx, user.Email, msg.Subject, msg.Text, msg.HTML); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	metrics.OTPIssuedTotal.WithLabelValues(purpose).Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID.String(),
		"purpose": purpose,
	}).Info("otp issued")
	return nil
}

// ValidateOTP reports whether code is the user's current, unexpired code and
// consumes it on success.
func (s *OTPService) ValidateOTP(ctx context.Context, user *entity.User, code string) (bool, error) {
	ok, err := s.validate(ctx, user, code)
	if err != nil {
		return false, err
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	metrics.OTPValidationsTotal.WithLabelValues(result).Inc()
	return ok, nil
}

func (s *OTPService) validate(ctx context.Context, user *entity.User, code string) (bool, error) {
	device, err := s.devices.FindByUserID(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("load otp device: %w", err)
	}
	if device == nil || device.IssuedAt == nil {
		return false, nil
	}
	if s.clock.Now().Sub(*device.IssuedAt) > s.ttl {
		return false, nil
	}
	if device.Code == nil || subtle.ConstantTimeCompare([]byte(*device.Code), []byte(code)) != 1 {
		return false, nil
	}
	consumed, err := s.devices.ConsumeCode(ctx, user.ID, code)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return consumed, nil
}

func (s *OTPService) TTL() time.Duration {
	return s.ttl
}
