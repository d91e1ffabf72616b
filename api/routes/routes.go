package routes

import (
	"net/http"
	"time"

	"authgate/api/handler"
	"authgate/api/middleware"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type CSRFConfig struct {
	Enabled      bool
	CookieDomain string
	Secure       bool
}

type Router struct {
	Echo     *echo.Echo
	Auth     *handler.AuthHandler
	Sessions middleware.SessionMiddleware
	CSRF     CSRFConfig
	AuthRate *middleware.RateLimiter
	OTPRate  *middleware.RateLimiter
}

// NewRouter builds a router; requestsPerSecond <= 0 turns rate limiting off.
func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	sessions middleware.SessionMiddleware,
	csrf CSRFConfig,
	requestsPerSecond float64,
	burst int,
) *Router {
	limit := rate.Limit(requestsPerSecond)
	return &Router{
		Echo:     e,
		Auth:     authHandler,
		Sessions: sessions,
		CSRF:     csrf,
		AuthRate: middleware.NewRateLimiter(limit, burst, 10*time.Minute),
		OTPRate:  middleware.NewRateLimiter(limit, burst, 10*time.Minute).KeyBy(middleware.PendingUserKey),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.Pre(echoMiddleware.AddTrailingSlashWithConfig(echoMiddleware.TrailingSlashConfig{
		Skipper: operationalPath,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", r.Auth.Health)

	api := e.Group("", r.Sessions.Handler)
	if r.CSRF.Enabled {
		api.Use(echoMiddleware.CSRFWithConfig(echoMiddleware.CSRFConfig{
			TokenLookup:    "header:X-CSRFToken",
			CookieName:     "csrftoken",
			CookiePath:     "/",
			CookieDomain:   r.CSRF.CookieDomain,
			CookieSecure:   r.CSRF.Secure,
			CookieSameSite: http.SameSiteLaxMode,
		}))
	}

	limited := r.AuthRate.Middleware()

	api.GET("/csrf/", r.Auth.CSRF)
	api.POST("/register/", r.Auth.Register, limited)
	api.GET("/activate/:uid/:token/", r.Auth.Activate)
	api.POST("/login/", r.Auth.Login, limited)
	api.POST("/verify-2fa/", r.Auth.VerifyLogin2FA, r.OTPRate.Middleware())

	api.POST("/enable-2fa/", r.Auth.EnableTwoFactor, r.Sessions.RequireAuth)
	api.POST("/verify-2fa-setup/", r.Auth.ConfirmTwoFactor, r.Sessions.RequireAuth)
	api.GET("/user/", r.Auth.CurrentUser, r.Sessions.RequireAuth)
	api.POST("/logout/", r.Auth.Logout, r.Sessions.RequireAuth)
}

func operationalPath(c echo.Context) bool {
	switch c.Request().URL.Path {
	case "/metrics", "/healthz":
		return true
	}
	return false
}
