package auth

import (
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "prepai/internal/errors"
)

// ClaimsContextKey is where BearerMiddleware stores verified *Claims.
const ClaimsContextKey = "claims"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// BearerMiddleware rejects requests without a valid bearer token before any
// handler runs: missing or expired tokens get 401, anything else invalid gets 403.
func BearerMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ClaimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return verifier.Verify(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			switch {
			case errors.Is(err, ErrTokenExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
					Error: ErrTokenExpired.Error(),
					Code:  apperrors.CodeTokenExpired,
				})
			case errors.Is(err, ErrInvalidToken):
				return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
					Error: ErrInvalidToken.Error(),
					Code:  apperrors.CodeInvalidToken,
				})
			default:
				// no Authorization header, or not a Bearer scheme
				return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
					Error: apperrors.ErrAuthenticationRequired.Error(),
					Code:  apperrors.CodeAuthRequired,
				})
			}
		},
	})
}

// ClaimsFromContext returns the claims attached by BearerMiddleware.
func ClaimsFromContext(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}
