package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"authgate/internal/entity"
	"authgate/internal/repository"
	"authgate/internal/service"
	"authgate/internal/testutil"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	svc          *service.AuthService
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository
	clock        *testutil.Clock
	mailbox      *testutil.Mailbox
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	devices := repository.NewOTPDeviceRepository(db)
	securityLogs := repository.NewSecurityLogRepository(db)

	logger, _ := test.NewNullLogger()
	clock := testutil.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	mailbox := &testutil.Mailbox{}
	otp := service.NewOTPService(devices, testutil.Generator{Code: "482913"}, mailbox, clock, 10*time.Minute, logger)

	svc := service.NewAuthService(
		users,
		devices,
		securityLogs,
		otp,
		service.ActivationTokens{Secret: []byte("test-secret"), TTL: 72 * time.Hour, Clock: clock},
		mailbox,
		service.BcryptPasswordHasher{Cost: bcrypt.MinCost},
		clock,
		service.AuthConfig{FrontendBaseURL: "http://app.test"},
		logger,
	)
	return authFixture{svc: svc, users: users, securityLogs: securityLogs, clock: clock, mailbox: mailbox}
}

func (f authFixture) registerAndActivate(t *testing.T, username string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "S3cure!pass",
	}))
	uid, token := testutil.ActivationParts(t, f.mailbox.Last(t))
	require.NoError(t, f.svc.Activate(ctx, uid, token))
}

func (f authFixture) login(t *testing.T, username string) *entity.Session {
	t.Helper()
	sess := entity.NewSession("", nil)
	result, err := f.svc.Login(context.Background(), sess, service.LoginInput{Username: username, Password: "S3cure!pass"})
	require.NoError(t, err)
	require.False(t, result.TwoFactorRequired)
	return sess
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	err := f.svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "Alice@Example.com ", Password: "S3cure!pass"})
	require.NoError(t, err)

	user, err := f.users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.False(t, user.IsActive)
	require.Equal(t, "Alice@example.com", user.Email, "only the domain is lowercased")
	require.NotEqual(t, "S3cure!pass", user.PasswordHash)
	require.True(t, user.DateJoined.Equal(f.clock.Now()))

	mail := f.mailbox.Last(t)
	require.Equal(t, "Alice@example.com", mail.To)
	require.Equal(t, "Activate Your Account", mail.Subject)
	require.Contains(t, mail.Text, "http://app.test/activate/"+service.EncodeUserID(user.ID)+"/")
	require.Contains(t, mail.HTML, "Activate Account")

	logs, err := f.securityLogs.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, entity.Register, logs[0].Action)
}

func TestRegisterKeepsUsernameAsGiven(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, service.RegisterInput{Username: "Bob ", Email: "bob@example.com", Password: "pw"}))

	user, err := f.users.FindByUsername(ctx, "Bob ")
	require.NoError(t, err)
	require.NotNil(t, user)

	user, err = f.users.FindByUsername(ctx, "Bob")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestRegisterRejects(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "a@example.com", Password: "pw"}))

	cases := []struct {
		name  string
		input service.RegisterInput
		want  error
	}{
		{name: "missing username", input: service.RegisterInput{Email: "b@example.com", Password: "pw"}, want: service.ErrMissingFields},
		{name: "missing email", input: service.RegisterInput{Username: "bob", Password: "pw"}, want: service.ErrMissingFields},
		{name: "missing password", input: service.RegisterInput{Username: "bob", Email: "b@example.com"}, want: service.ErrMissingFields},
		{name: "malformed email", input: service.RegisterInput{Username: "bob", Email: "not-an-email", Password: "pw"}, want: service.ErrInvalidEmail},
		{name: "taken username", input: service.RegisterInput{Username: "alice", Email: "other@example.com", Password: "pw"}, want: service.ErrUsernameTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.Register(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Len(t, f.mailbox.Messages(), 1)
}

func TestRegisterMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mailbox.Err = errors.New("smtp down")

	err := f.svc.Register(context.Background(), service.RegisterInput{Username: "alice", Email: "a@example.com", Password: "pw"})
	require.Error(t, err)
	require.NotErrorIs(t, err, service.ErrValidation)
}

func TestActivate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "a@example.com", Password: "pw"}))
	uid, token := testutil.ActivationParts(t, f.mailbox.Last(t))

	require.ErrorIs(t, f.svc.Activate(ctx, "garbage", token), service.ErrActivationInvalid)
	require.ErrorIs(t, f.svc.Activate(ctx, uid, "garbage"), service.ErrActivationInvalid)
	require.ErrorIs(t, f.svc.Activate(ctx, service.EncodeUserID(uuid.New()), token), service.ErrActivationInvalid)

	require.NoError(t, f.svc.Activate(ctx, uid, token))
	user, err := f.users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, user.IsActive)

	require.ErrorIs(t, f.svc.Activate(ctx, uid, token), service.ErrActivationInvalid, "token is single use")
}

func TestActivateExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "a@example.com", Password: "pw"}))
	uid, token := testutil.ActivationParts(t, f.mailbox.Last(t))

	f.clock.Advance(73 * time.Hour)
	require.ErrorIs(t, f.svc.Activate(ctx, uid, token), service.ErrActivationInvalid)
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "a@example.com", Password: "S3cure!pass"}))

	cases := []struct {
		name  string
		input service.LoginInput
		want  error
	}{
		{name: "blank", input: service.LoginInput{}, want: service.ErrInvalidCredentials},
		{name: "unknown user", input: service.LoginInput{Username: "bob", Password: "S3cure!pass"}, want: service.ErrInvalidCredentials},
		{name: "wrong password", input: service.LoginInput{Username: "alice", Password: "nope"}, want: service.ErrInvalidCredentials},
		{name: "inactive", input: service.LoginInput{Username: "alice", Password: "S3cure!pass"}, want: service.ErrAccountInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := entity.NewSession("", nil)
			_, err := f.svc.Login(ctx, sess, tc.input)
			require.ErrorIs(t, err, tc.want)
			require.True(t, sess.IsEmpty())
		})
	}
}

func TestLoginWithoutTwoFactor(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndActivate(t, "alice")
	ctx := context.Background()

	sess := entity.NewSession("old-id", nil)
	result, err := f.svc.Login(ctx, sess, service.LoginInput{Username: "alice", Password: "S3cure!pass"})
	require.NoError(t, err)
	require.False(t, result.TwoFactorRequired)
	require.NotNil(t, result.User)
	require.Equal(t, "alice", result.User.Username)
	require.True(t, result.User.IsActive)
	require.False(t, result.User.TwoFactorEnabled)
	require.True(t, sess.Cycled())

	userID, ok := service.SessionUserID(sess)
	require.True(t, ok)
	require.Equal(t, result.User.ID, userID)

	profile, err := f.svc.CurrentUser(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", profile.Email)
}

func TestTwoFactorEnrolment(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndActivate(t, "alice")
	ctx := context.Background()
	sess := f.login(t, "alice")

	require.NoError(t, f.svc.EnableTwoFactor(ctx, sess))
	require.Equal(t, "Your Two-Factor Authentication Code", f.mailbox.Last(t).Subject)

	profile, err := f.svc.CurrentUser(ctx, sess)
	require.NoError(t, err)
	require.False(t, profile.TwoFactorEnabled, "unconfirmed device does not count")

	require.ErrorIs(t, f.svc.ConfirmTwoFactor(ctx, sess, "000000"), service.ErrInvalidOTP)
	require.ErrorIs(t, f.svc.ConfirmTwoFactor(ctx, sess, ""), service.ErrInvalidOTP)
	require.NoError(t, f.svc.ConfirmTwoFactor(ctx, sess, "482913"))

	profile, err = f.svc.CurrentUser(ctx, sess)
	require.NoError(t, err)
	require.True(t, profile.TwoFactorEnabled)
}

func TestTwoFactorRequiresSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := entity.NewSession("", nil)

	require.ErrorIs(t, f.svc.EnableTwoFactor(ctx, sess), service.ErrNotAuthenticated)
	require.ErrorIs(t, f.svc.ConfirmTwoFactor(ctx, sess, "482913"), service.ErrNotAuthenticated)
	_, err := f.svc.CurrentUser(ctx, sess)
	require.ErrorIs(t, err, service.ErrNotAuthenticated)
	require.ErrorIs(t, f.svc.Logout(ctx, sess, nil), service.ErrNotAuthenticated)
}

func TestLoginWithTwoFactor(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndActivate(t, "alice")
	ctx := context.Background()

	setup := f.login(t, "alice")
	require.NoError(t, f.svc.EnableTwoFactor(ctx, setup))
	require.NoError(t, f.svc.ConfirmTwoFactor(ctx, setup, "482913"))

	sess := entity.NewSession("", nil)
	result, err := f.svc.Login(ctx, sess, service.LoginInput{Username: "alice", Password: "S3cure!pass"})
	require.NoError(t, err)
	require.True(t, result.TwoFactorRequired)
	require.Nil(t, result.User)

	_, ok := service.SessionUserID(sess)
	require.False(t, ok, "not logged in before the code is verified")
	_, ok = sess.Get(entity.SessionPendingUserIDKey)
	require.True(t, ok)

	_, err = f.svc.VerifyLogin2FA(ctx, sess, "000000", nil)
	require.ErrorIs(t, err, service.ErrInvalidOTP)
	_, ok = sess.Get(entity.SessionPendingUserIDKey)
	require.True(t, ok, "pending state survives a wrong code")

	profile, err := f.svc.VerifyLogin2FA(ctx, sess, "482913", nil)
	require.NoError(t, err)
	require.True(t, profile.TwoFactorEnabled)
	_, ok = sess.Get(entity.SessionPendingUserIDKey)
	require.False(t, ok)
	userID, ok := service.SessionUserID(sess)
	require.True(t, ok)
	require.Equal(t, profile.ID, userID)

	logs, err := f.securityLogs.ListByUser(ctx, profile.ID)
	require.NoError(t, err)
	var actions []entity.SecurityAction
	for _, log := range logs {
		actions = append(actions, log.Action)
	}
	require.Contains(t, actions, entity.MFAEnabled)
	require.Contains(t, actions, entity.LoginPending2FA)
	require.Contains(t, actions, entity.MFAFailed)
}

func TestVerifyLogin2FAEdgeCases(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("no pending login", func(t *testing.T) {
		_, err := f.svc.VerifyLogin2FA(ctx, entity.NewSession("", nil), "482913", nil)
		require.ErrorIs(t, err, service.ErrNoPendingVerification)
	})

	t.Run("unknown user", func(t *testing.T) {
		sess := entity.NewSession("", map[string]string{
			entity.SessionPendingUserIDKey: "7f9c24e8-3b12-4f6e-9a1d-2c4b6e8f0a13",
		})
		_, err := f.svc.VerifyLogin2FA(ctx, sess, "482913", nil)
		require.ErrorIs(t, err, service.ErrUserNotFound)
	})

	t.Run("expired code", func(t *testing.T) {
		f.registerAndActivate(t, "carol")
		setup := f.login(t, "carol")
		require.NoError(t, f.svc.EnableTwoFactor(ctx, setup))
		require.NoError(t, f.svc.ConfirmTwoFactor(ctx, setup, "482913"))

		sess := entity.NewSession("", nil)
		_, err := f.svc.Login(ctx, sess, service.LoginInput{Username: "carol", Password: "S3cure!pass"})
		require.NoError(t, err)

		f.clock.Advance(10*time.Minute + time.Second)
		_, err = f.svc.VerifyLogin2FA(ctx, sess, "482913", nil)
		require.ErrorIs(t, err, service.ErrInvalidOTP)
	})
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndActivate(t, "alice")
	ctx := context.Background()
	sess := f.login(t, "alice")

	require.NoError(t, f.svc.Logout(ctx, sess, nil))
	require.True(t, sess.Flushed())
	require.True(t, sess.IsEmpty())

	_, err := f.svc.CurrentUser(ctx, sess)
	require.ErrorIs(t, err, service.ErrNotAuthenticated)
}
