package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"prepai/internal/auth"
	apperrors "prepai/internal/errors"
	"prepai/internal/service"
)

// UserHandler serves the caller's own identity.
type UserHandler struct {
	svc service.AuthService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.AuthService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return httpError(apperrors.ErrAuthenticationRequired)
	}
	user, err := h.svc.CurrentUser(c.Request().Context(), claims.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
