package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/veloshop/veloshop_auth/internal/auth"
	"github.com/veloshop/veloshop_auth/internal/config"
	"github.com/veloshop/veloshop_auth/internal/middleware"
	"github.com/veloshop/veloshop_auth/internal/notification"
	"github.com/veloshop/veloshop_auth/internal/otp"
	"github.com/veloshop/veloshop_auth/internal/ratelimit"
	"github.com/veloshop/veloshop_auth/internal/token"
	"github.com/veloshop/veloshop_auth/internal/user"
)

const ipRequestsPerMinute = 60

// JSONErrorHandler renders every error as a JSON envelope so auth failures
// have a stable machine-readable shape.
func JSONErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"message": message})
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes. Nil DB/Cache fall
// back to in-memory stores, which is only allowed in development.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var userRepo user.Repository
	if d.DB != nil {
		pgRepo := user.NewPostgresRepository(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure users schema: %w", err)
		}
		userRepo = pgRepo
	} else {
		userRepo = user.NewMemoryRepository()
	}

	var (
		otpStore     otp.Store
		sessionStore token.SessionStore
		loginLimiter ratelimit.Limiter
		otpLimiter   ratelimit.Limiter
		ipLimiter    ratelimit.Limiter
	)
	if d.Cache != nil {
		otpStore = otp.NewRedisStore(d.Cache)
		sessionStore = token.NewRedisStore(d.Cache)
		loginLimiter = ratelimit.NewRedisLimiter(d.Cache, "login", d.Cfg.LoginMaxAttempts, d.Cfg.AttemptWindow)
		otpLimiter = ratelimit.NewRedisLimiter(d.Cache, "otp", d.Cfg.OTPMaxAttempts, d.Cfg.AttemptWindow)
		ipLimiter = ratelimit.NewRedisLimiter(d.Cache, "http", ipRequestsPerMinute, time.Minute)
	} else {
		otpStore = otp.NewMemoryStore()
		sessionStore = token.NewMemoryStore()
		loginLimiter = ratelimit.NewMemoryLimiter(d.Cfg.LoginMaxAttempts, d.Cfg.AttemptWindow)
		otpLimiter = ratelimit.NewMemoryLimiter(d.Cfg.OTPMaxAttempts, d.Cfg.AttemptWindow)
		ipLimiter = ratelimit.NewMemoryLimiter(ipRequestsPerMinute, time.Minute)
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	userSvc := user.NewService(userRepo)
	otpSvc := otp.NewService(otpStore, notifier, d.Logger, otp.Options{
		VerifyTTL:     d.Cfg.VerifyOTPTTL,
		ResetTTL:      d.Cfg.ResetOTPTTL,
		NotifyTimeout: d.Cfg.NotifyTimeout,
	})
	tokenSvc := token.NewService(sessionStore, token.Options{
		AccessSecret:  []byte(d.Cfg.JWTSecret),
		RefreshSecret: []byte(d.Cfg.RefreshSecret),
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
	})
	authSvc := auth.NewService(userSvc, otpSvc, tokenSvc, loginLimiter, otpLimiter, d.Logger)
	authHandler := auth.NewHandler(authSvc)

	api := app.Group("/api")
	RegisterAuthRoutes(api, authHandler,
		middleware.AuthRateLimit(ipLimiter),
		middleware.RequireAuth(tokenSvc))

	return nil
}
