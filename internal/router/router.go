package router

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"prepai/internal/auth"
	"prepai/internal/handler"
	"prepai/internal/logger"
	"prepai/internal/metrics"
	"prepai/internal/ratelimit"
	"prepai/internal/validation"
)

// Deps are the collaborators the API routes are wired to.
type Deps struct {
	Logger       logrus.FieldLogger
	Metrics      *metrics.Metrics
	AuthHandler  *handler.AuthHandler
	UserHandler  *handler.UserHandler
	Verifier     auth.TokenVerifier
	LoginLimiter middleware.RateLimiterStore
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
	// TrustedProxies are the peers whose X-Forwarded-For is believed. When
	// empty the client IP is the connection's peer address.
	TrustedProxies []*net.IPNet
}

// Register wires routes and middleware.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.MetricsHandler == nil {
		d.MetricsHandler = promhttp.Handler()
	}

	e.Use(middleware.RequestID())
	e.Use(logger.RequestLogger(d.Logger))
	e.Use(middleware.Recover())

	e.Validator = validation.New()
	e.IPExtractor = clientIP(d.TrustedProxies)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(d.MetricsHandler))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/signup", d.AuthHandler.Signup)
	api.POST("/auth/login", d.AuthHandler.Login, ratelimit.Middleware(d.LoginLimiter, d.Metrics, d.Logger))
	api.POST("/auth/refresh", d.AuthHandler.Refresh)
	api.POST("/auth/logout", d.AuthHandler.Logout)

	// Secured routes (require a bearer access token)
	secured := api.Group("", auth.BearerMiddleware(d.Verifier))
	secured.GET("/auth/verify", d.AuthHandler.Verify)
	secured.GET("/me", d.UserHandler.Me)
}

// clientIP decides which address c.RealIP reports, and so what the login
// limiter keys on. Forwarding headers from untrusted peers are ignored.
func clientIP(proxies []*net.IPNet) echo.IPExtractor {
	if len(proxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range proxies {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
