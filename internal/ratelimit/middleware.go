package ratelimit

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	apperrors "prepai/internal/errors"
	"prepai/internal/metrics"
)

// Middleware rejects requests over the store's limit with 429 before the
// handler runs. A store failure answers 503 rather than letting the attempt through.
func Middleware(store middleware.RateLimiterStore, m *metrics.Metrics, log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		// RealIP follows e.IPExtractor; without one echo trusts client headers.
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
				Error: "unable to identify client",
				Code:  apperrors.CodeRateLimited,
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if err != nil {
				log.WithError(err).WithField("client", identifier).Error("rate limit store unavailable")
				return echo.NewHTTPError(http.StatusServiceUnavailable, apperrors.ErrorResponse{
					Error: "service unavailable",
					Code:  apperrors.CodeUnavailable,
				})
			}
			m.LoginAttempt(metrics.LoginRateLimited)
			log.WithField("client", identifier).Warn("login rate limit exceeded")
			return echo.NewHTTPError(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: apperrors.ErrTooManyAttempts.Error(),
				Code:  apperrors.CodeRateLimited,
			})
		},
	})
}
