package handler

import (
	"errors"
	"net/http"
	"strings"

	"authgate/api/middleware"
	"authgate/internal/dto"
	"authgate/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	Service  *service.AuthService
	Validate *validator.Validate
	Logger   logrus.FieldLogger
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate, logger logrus.FieldLogger) *AuthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthHandler{
		Service:  svc,
		Validate: validate,
		Logger:   logger,
	}
}

// CSRF only answers; the CSRF middleware sets the cookie.
func (h *AuthHandler) CSRF(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "CSRF cookie set"})
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return h.writeServiceError(c, validationError(err))
	}
	input := service.RegisterInput{Username: req.Username, Email: req.Email, Password: req.Password}
	if err := h.Service.Register(c.Request().Context(), input); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.MessageResponse{
		Message: "Registration successful. Please check your email to activate your account.",
	})
}

func (h *AuthHandler) Activate(c echo.Context) error {
	if err := h.Service.Activate(c.Request().Context(), c.Param("uid"), c.Param("token")); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "Account activated successfully. You can now log in.",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		return h.writeServiceError(c, errors.New("session unavailable"))
	}
	var req dto.LoginRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	input := service.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: stringPtr(c.RealIP()),
	}
	result, err := h.Service.Login(c.Request().Context(), sess, input)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	if err := middleware.CommitSession(c); err != nil {
		return h.writeServiceError(c, err)
	}
	if result.TwoFactorRequired {
		return c.JSON(http.StatusOK, dto.LoginResponse{
			Message:           "2FA required. OTP sent to email.",
			TwoFactorRequired: true,
		})
	}
	return c.JSON(http.StatusOK, dto.LoginResponse{
		Message: "Login successful",
		User:    dto.UserResponseFromProfile(result.User),
	})
}

func (h *AuthHandler) VerifyLogin2FA(c echo.Context) error {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		return h.writeServiceError(c, errors.New("session unavailable"))
	}
	var req dto.OTPRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	profile, err := h.Service.VerifyLogin2FA(c.Request().Context(), sess, req.OTPCode, stringPtr(c.RealIP()))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	if err := middleware.CommitSession(c); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.LoginResponse{
		Message: "2FA verification successful. Logged in.",
		User:    dto.UserResponseFromProfile(profile),
	})
}

func (h *AuthHandler) EnableTwoFactor(c echo.Context) error {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		return h.writeServiceError(c, service.ErrNotAuthenticated)
	}
	if err := h.Service.EnableTwoFactor(c.Request().Context(), sess); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "OTP sent to your email to confirm 2FA setup."})
}

func (h *AuthHandler) ConfirmTwoFactor(c echo.Context) error {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		return h.writeServiceError(c, service.ErrNotAuthenticated)
	}
	var req dto.OTPRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ConfirmTwoFactor(c.Request().Context(), sess, req.OTPCode); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "2FA has been enabled successfully."})
}

func (h *AuthHandler) CurrentUser(c echo.Context) error {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		return h.writeServiceError(c, service.ErrNotAuthenticated)
	}
	profile, err := h.Service.CurrentUser(c.Request().Context(), sess)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromProfile(profile))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		return h.writeServiceError(c, service.ErrNotAuthenticated)
	}
	if err := h.Service.Logout(c.Request().Context(), sess, stringPtr(c.RealIP())); err != nil {
		return h.writeServiceError(c, err)
	}
	if err := middleware.CommitSession(c); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Successfully logged out."})
}

func (h *AuthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

var errMalformedBody = errors.New("Malformed request body.")

// validationError turns validator output into the matching service error.
func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return service.ErrValidation
	}
	for _, fe := range fieldErrors {
		if fe.Tag() == "required" {
			return service.ErrMissingFields
		}
	}
	if fieldErrors[0].Field() == "Email" {
		return service.ErrInvalidEmail
	}
	return service.ErrValidation
}

// bindBody accepts JSON and form bodies; unknown fields are ignored and an
// empty body leaves target zeroed.
func bindBody(c echo.Context, target any) error {
	if err := c.Bind(target); err != nil {
		return errMalformedBody
	}
	return nil
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	status, known := statusForError(err)
	message, ok := dto.ErrorMessage(err)
	if !known || !ok {
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"uri":    c.Request().RequestURI,
		}).Error("request failed")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(status, dto.ErrorResponse{Error: message})
}

func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrActivationInvalid),
		errors.Is(err, service.ErrNoPendingVerification),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrInvalidOTP):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, true
	}
	return http.StatusInternalServerError, false
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
