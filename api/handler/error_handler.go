package handler

import (
	"errors"
	"fmt"
	"net/http"

	"authgate/internal/dto"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders errors that escape handlers and middleware (routing,
// CSRF, rate limiting, panics) with the same {"error": ...} body.
func ErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if status < http.StatusInternalServerError {
				message = fmt.Sprint(httpErr.Message)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithField("uri", c.Request().RequestURI).Error("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, dto.ErrorResponse{Error: message})
		}
		if writeErr != nil {
			logger.WithError(writeErr).Error("write error response")
		}
	}
}
