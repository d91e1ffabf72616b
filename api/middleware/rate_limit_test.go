package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authgate/api/middleware"
	"authgate/internal/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newLimitedApp(limiter *middleware.RateLimiter) *echo.Echo {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, limiter.Middleware())
	return e
}

func TestRateLimiterBlocksBurst(t *testing.T) {
	e := newLimitedApp(middleware.NewRateLimiter(rate.Every(time.Hour), 2, time.Minute))

	require.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", nil).Code)
	require.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/login", nil).Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	e := newLimitedApp(middleware.NewRateLimiter(0, 0, time.Minute))

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", nil).Code)
	}
}

func TestRateLimiterKeyedByPendingUser(t *testing.T) {
	limiter := middleware.NewRateLimiter(rate.Every(time.Hour), 1, time.Minute).KeyBy(middleware.PendingUserKey)

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			values := map[string]string{}
			if pending := c.Request().Header.Get("X-Pending"); pending != "" {
				values[entity.SessionPendingUserIDKey] = pending
			}
			middleware.SetSession(c, entity.NewSession("", values))
			return next(c)
		}
	})
	e.POST("/verify-2fa/", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, limiter.Middleware())

	guess := func(ip, pending string) int {
		req := httptest.NewRequest(http.MethodPost, "/verify-2fa/", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		if pending != "" {
			req.Header.Set("X-Pending", pending)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	alice := uuid.NewString()
	require.Equal(t, http.StatusNoContent, guess("198.51.100.1", alice))
	require.Equal(t, http.StatusTooManyRequests, guess("198.51.100.2", alice), "a new address shares the user's bucket")
	require.Equal(t, http.StatusNoContent, guess("198.51.100.2", uuid.NewString()))
	require.Equal(t, http.StatusNoContent, guess("198.51.100.3", ""), "no pending login falls back to the address")
	require.Equal(t, http.StatusTooManyRequests, guess("198.51.100.3", ""))
}
