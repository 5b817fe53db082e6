package handler

import (
	"github.com/labstack/echo/v4"

	apperrors "prepai/internal/errors"
)

// httpError converts a domain error into the JSON error envelope.
func httpError(err error) *echo.HTTPError {
	mapped := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(mapped.StatusCode, mapped.ToErrorResponse())
}
