package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"prepai/docs"
	"prepai/internal/auth"
	"prepai/internal/cache"
	"prepai/internal/config"
	"prepai/internal/db"
	"prepai/internal/handler"
	"prepai/internal/logger"
	"prepai/internal/metrics"
	"prepai/internal/ratelimit"
	"prepai/internal/repository"
	"prepai/internal/router"
	"prepai/internal/service"
	"prepai/internal/tracing"
)

// @title PrepAI Auth API
// @version 1.0
// @description Identity provider for the interview practice app: signup, login, refresh and bearer verification.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "prepai-api",
		Environment: cfg.AppEnv,
	})
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("%v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		// refresh tokens fail closed until redis is back
		log.WithError(err).Warn("redis unreachable at start-up")
	}

	jwtService, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	authService := service.NewAuthService(
		repository.NewUserRepository(gormDB),
		jwtService,
		auth.NewTokenStore(cacheClient),
		service.NewBcryptHasher(cfg.BcryptCost),
		service.WithPasswordMinLength(cfg.PasswordMinLength),
		service.WithLogger(log),
	)

	var limiter middleware.RateLimiterStore
	switch cfg.RateLimitBackend {
	case "redis":
		limiter = ratelimit.NewRedisStore(cacheClient, "ratelimit:login:", cfg.LoginRateLimit, cfg.LoginRateWindow)
	default:
		limiter = ratelimit.NewMemoryStore(cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Logger:  log,
		Metrics: m,
		AuthHandler: handler.NewAuthHandler(authService, handler.AuthHandlerConfig{
			RefreshTTL:    jwtService.RefreshTTL(),
			SecureCookies: !cfg.IsDevelopment(),
			Metrics:       m,
			Logger:        log,
		}),
		UserHandler:    handler.NewUserHandler(authService),
		Verifier:       jwtService,
		LoginLimiter:   limiter,
		TrustedProxies: cfg.TrustedProxies,
	})

	go func() {
		addr := ":" + cfg.ServerPort
		log.WithFields(logrus.Fields{"addr": addr, "swagger": "/swagger/index.html"}).Info("api listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Error("tracing shutdown")
	}
}
