package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"

	"authgate/internal/entity"
	"authgate/internal/metrics"
	"authgate/internal/repository"
	"authgate/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const (
	otpPurposeLogin = "login"
	otpPurposeSetup = "setup"
)

type AuthService struct {
	users        repository.UserRepository
	devices      repository.OTPDeviceRepository
	securityLogs repository.SecurityLogRepository

	otp          *OTPService
	activation   ActivationTokens
	notifier     Notifier
	passwordHash PasswordHasher
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewAuthService(
	users repository.UserRepository,
	devices repository.OTPDeviceRepository,
	securityLogs repository.SecurityLogRepository,
	otp *OTPService,
	activation ActivationTokens,
	notifier Notifier,
	passwordHash PasswordHasher,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthService {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		users:        users,
		devices:      devices,
		securityLogs: securityLogs,
		otp:          otp,
		activation:   activation,
		notifier:     notifier,
		passwordHash: passwordHash,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

// Register creates an inactive account and mails its activation link.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	username := input.Username
	if utils.IsBlank(username, input.Email, input.Password) {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return ErrMissingFields
	}
	email := utils.NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return ErrInvalidEmail
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return ErrUsernameTaken
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return err
	}
	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     false,
		DateJoined:   s.clock.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return ErrUsernameTaken
		}
		return err
	}

	token, err := s.activation.MakeToken(user)
	if err != nil {
		return fmt.Errorf("make activation token: %w", err)
	}
	link := activationLink(s.config.FrontendBaseURL, EncodeUserID(user.ID), token)
	msg := activationMessage(user.Username, link)
	if err := s.notifier.Send(ctx, user.Email, msg.Subject, msg.Text, msg.HTML); err != nil {
		return fmt.Errorf("send activation email: %w", err)
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	_ = s.logSecurity(ctx, &user.ID, nil, entity.Register, nil)
	return nil
}

// Activate flips the account to active when token matches the user's
// current state. Every failure is reported as ErrActivationInvalid.
func (s *AuthService) Activate(ctx context.Context, encodedUserID string, token string) error {
	userID, err := DecodeUserID(encodedUserID)
	if err != nil {
		metrics.ActivationsTotal.WithLabelValues("invalid").Inc()
		return ErrActivationInvalid
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !s.activation.CheckToken(user, token) {
		metrics.ActivationsTotal.WithLabelValues("invalid").Inc()
		return ErrActivationInvalid
	}

	if err := s.users.Activate(ctx, user.ID); err != nil {
		return err
	}
	metrics.ActivationsTotal.WithLabelValues("activated").Inc()
	_ = s.logSecurity(ctx, &user.ID, nil, entity.Activate, nil)
	return nil
}

// Login checks credentials. Users with confirmed two-factor get an emailed
// code and a pending session; everyone else is logged in at once.
func (s *AuthService) Login(ctx context.Context, sess *entity.Session, input LoginInput) (*LoginResult, error) {
	username := input.Username
	if utils.IsBlank(username, input.Password) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		_ = s.logSecurity(ctx, nil, input.IPAddress, entity.LoginFailed, map[string]any{"username": username})
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(user.PasswordHash, input.Password) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginFailed, map[string]any{"username": username})
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("inactive").Inc()
		return nil, ErrAccountInactive
	}

	if user.TwoFactorEnabled() {
		if err := s.otp.IssueOTP(ctx, user, otpPurposeLogin); err != nil {
			return nil, err
		}
		sess.Delete(entity.SessionUserIDKey)
		sess.Set(entity.SessionPendingUserIDKey, user.ID.String())
		metrics.LoginsTotal.WithLabelValues("pending_2fa").Inc()
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginPending2FA, nil)
		return &LoginResult{TwoFactorRequired: true}, nil
	}

	loginSession(sess, user)
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginSuccess, nil)
	return &LoginResult{User: profileFromUser(user)}, nil
}

// VerifyLogin2FA completes a pending login. A wrong code leaves the pending
// state in place so the user can retry.
func (s *AuthService) VerifyLogin2FA(ctx context.Context, sess *entity.Session, code string, ipAddress *string) (*UserProfile, error) {
	pending, ok := sess.Get(entity.SessionPendingUserIDKey)
	if !ok || pending == "" {
		return nil, ErrNoPendingVerification
	}
	userID, err := uuid.Parse(pending)
	if err != nil {
		sess.Delete(entity.SessionPendingUserIDKey)
		return nil, ErrNoPendingVerification
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	valid, err := s.otp.ValidateOTP(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !valid {
		_ = s.logSecurity(ctx, &user.ID, ipAddress, entity.MFAFailed, map[string]any{"stage": otpPurposeLogin})
		return nil, ErrInvalidOTP
	}

	loginSession(sess, user)
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	_ = s.logSecurity(ctx, &user.ID, ipAddress, entity.LoginSuccess, map[string]any{"mfa": true})
	return profileFromUser(user), nil
}

// EnableTwoFactor sends a setup code; two-factor stays off until it is confirmed.
func (s *AuthService) EnableTwoFactor(ctx context.Context, sess *entity.Session) error {
	user, err := s.authenticatedUser(ctx, sess)
	if err != nil {
		return err
	}
	return s.otp.IssueOTP(ctx, user, otpPurposeSetup)
}

func (s *AuthService) ConfirmTwoFactor(ctx context.Context, sess *entity.Session, code string) error {
	user, err := s.authenticatedUser(ctx, sess)
	if err != nil {
		return err
	}
	valid, err := s.otp.ValidateOTP(ctx, user, code)
	if err != nil {
		return err
	}
	if !valid {
		_ = s.logSecurity(ctx, &user.ID, nil, entity.MFAFailed, map[string]any{"stage": otpPurposeSetup})
		return ErrInvalidOTP
	}
	if err := s.devices.Confirm(ctx, user.ID); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &user.ID, nil, entity.MFAEnabled, nil)
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, sess *entity.Session) (*UserProfile, error) {
	user, err := s.authenticatedUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	return profileFromUser(user), nil
}

func (s *AuthService) Logout(ctx context.Context, sess *entity.Session, ipAddress *string) error {
	user, err := s.authenticatedUser(ctx, sess)
	if err != nil {
		return err
	}
	sess.Flush()
	_ = s.logSecurity(ctx, &user.ID, ipAddress, entity.Logout, nil)
	return nil
}

// SessionUserID returns the authenticated user id stored in sess, if any.
func SessionUserID(sess *entity.Session) (uuid.UUID, bool) {
	if sess == nil {
		return uuid.Nil, false
	}
	raw, ok := sess.Get(entity.SessionUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *AuthService) authenticatedUser(ctx context.Context, sess *entity.Session) (*entity.User, error) {
	userID, ok := SessionUserID(sess)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		sess.Flush()
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// loginSession moves sess to the authenticated state under a new key.
func loginSession(sess *entity.Session, user *entity.User) {
	sess.Delete(entity.SessionPendingUserIDKey)
	sess.Set(entity.SessionUserIDKey, user.ID.String())
	sess.CycleKey()
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if s.securityLogs == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", string(action)).Warn("security log write failed")
		return err
	}
	return nil
}
