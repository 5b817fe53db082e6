package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"prepai/internal/config"
	"prepai/internal/guard"
	"prepai/internal/logger"
	"prepai/internal/metrics"
	"prepai/internal/tracing"
)

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
		ServiceName: "prepai-guard",
		Environment: cfg.AppEnv,
	})
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		log.Fatalf("UPSTREAM_URL: %v", err)
	}

	perms := cfg.Permissions
	if len(perms) == 0 {
		perms = guard.DefaultPermissions()
	}
	table, err := guard.NewPermissionTable(perms)
	if err != nil {
		log.Fatalf("permissions: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	g, err := guard.New(guard.Config{
		SignInPath:    cfg.SignInPath,
		LandingPath:   cfg.LandingPath,
		NotFoundPath:  cfg.NotFoundPath,
		SecureCookies: !cfg.IsDevelopment(),
		Permissions:   table,
		Exchanger:     guard.NewIdentityClient(cfg.IdentityProviderURL, cfg.IdentityTimeout, m),
		Metrics:       m,
		Logger:        log,
	})
	if err != nil {
		log.Fatalf("guard: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(logger.RequestLogger(log))
	e.Use(middleware.Recover())

	e.GET("/_guard/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/_guard/metrics", echo.WrapHandler(promhttp.Handler()))

	e.Group("", g.Middleware(), middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: upstream}}),
	})).Any("/*", func(c echo.Context) error {
		// unreachable: the proxy answers every request
		return echo.ErrNotFound
	})

	go func() {
		addr := ":" + cfg.GuardPort
		log.WithFields(logrus.Fields{"addr": addr, "upstream": upstream.String()}).Info("guard listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("guard start: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("guard shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Error("tracing shutdown")
	}
}
