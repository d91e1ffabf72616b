package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"authgate/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records request counts and latencies labelled by route template.
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().URL.Path == "/metrics" {
			return next(c)
		}

		start := time.Now()
		err := next(c)

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request().Method
		status := strconv.Itoa(responseStatus(c, err))

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}
