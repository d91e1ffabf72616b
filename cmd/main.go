package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate/api/handler"
	apiMiddleware "authgate/api/middleware"
	"authgate/api/routes"
	"authgate/config"
	"authgate/internal/metrics"
	"authgate/internal/notify"
	"authgate/internal/repository"
	"authgate/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectionDb(cfg)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	if cfg.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			logger.WithError(err).Fatal("migrate database")
		}
	}
	logger.Info("success connect to db")

	rdb, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	mailer, err := notify.New(notify.Config{
		Backend:      cfg.Email.Backend,
		From:         cfg.Email.From,
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		ResendAPIKey: cfg.Email.ResendAPIKey,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("email backend")
	}

	metrics.MustRegister("authgate")

	userRepo := repository.NewUserRepository(db)
	deviceRepo := repository.NewOTPDeviceRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)
	sessionRepo := repository.NewRedisSessionRepository(rdb, "", cfg.SessionTTL)

	clock := service.RealClock{}
	otpService := service.NewOTPService(deviceRepo, service.RandomOTPGenerator{}, mailer, clock, cfg.OTPTTL, logger)
	authService := service.NewAuthService(
		userRepo,
		deviceRepo,
		securityRepo,
		otpService,
		service.ActivationTokens{
			Secret: []byte(cfg.SecretKey),
			TTL:    cfg.ActivationTokenTTL,
			Clock:  clock,
		},
		mailer,
		service.BcryptPasswordHasher{},
		clock,
		service.AuthConfig{
			ActivationTokenTTL: cfg.ActivationTokenTTL,
			OTPTTL:             cfg.OTPTTL,
			FrontendBaseURL:    cfg.FrontendBaseURL,
		},
		logger,
	)

	authHandler := handler.NewAuthHandler(authService, validator.New(), logger)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.HTTPErrorHandler = handler.ErrorHandler(logger)
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	app.Use(apiMiddleware.Metrics)

	sessions := apiMiddleware.SessionMiddleware{
		Sessions:     sessionRepo,
		CookieName:   cfg.SessionCookieName,
		CookieDomain: cfg.CookieDomain,
		Secure:       cfg.CookieSecure,
		MaxAge:       cfg.SessionTTL,
		Logger:       logger,
	}
	router := routes.NewRouter(app, authHandler, sessions, routes.CSRFConfig{
		Enabled:      cfg.CSRFEnabled,
		CookieDomain: cfg.CookieDomain,
		Secure:       cfg.CookieSecure,
	}, cfg.RateLimitRPS, cfg.RateLimitBurst)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("server started")
	if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server stopped")
	}
}
