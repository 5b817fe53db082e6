package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"prepai/internal/auth"
	apperrors "prepai/internal/errors"
	"prepai/internal/metrics"
	"prepai/internal/model"
	"prepai/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   service.AuthService
	refreshTTL    time.Duration
	secureCookies bool
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
}

// AuthHandlerConfig carries the cookie and observability settings of AuthHandler.
type AuthHandlerConfig struct {
	RefreshTTL    time.Duration
	SecureCookies bool
	Metrics       *metrics.Metrics
	Logger        logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cfg AuthHandlerConfig) *AuthHandler {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = auth.DefaultRefreshTokenExpiry
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &AuthHandler{
		authService:   authService,
		refreshTTL:    cfg.RefreshTTL,
		secureCookies: cfg.SecureCookies,
		metrics:       cfg.Metrics,
		log:           cfg.Logger,
	}
}

// SignupRequest represents a user registration request.
type SignupRequest struct {
	FirstName       string `json:"firstName" validate:"required,notblank"`
	LastName        string `json:"lastName" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,notblank"`
	Password        string `json:"password" validate:"required,notblank"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,notblank"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest optionally carries the refresh token in the body for
// non-browser clients. The cookie wins when both are present.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries an access token.
type TokenResponse struct {
	Token string `json:"token"`
}

// RefreshResponse carries a fresh access token and the caller's role.
type RefreshResponse struct {
	Token string     `json:"token"`
	Role  model.Role `json:"role"`
}

// Signup godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup data"
// @Success 201 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	token, _, err := h.authService.Signup(c.Request().Context(), service.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		mapped := httpError(err)
		if mapped.Code == http.StatusInternalServerError {
			h.log.WithError(err).Error("signup failed")
		}
		return mapped
	}

	return c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

// Login godoc
// @Summary Login user
// @Description Rate limited per client address.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	accessToken, refreshToken, _, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			h.metrics.LoginAttempt(metrics.LoginRejected)
		} else {
			h.metrics.LoginAttempt(metrics.LoginFailed)
			h.log.WithError(err).Error("login failed")
		}
		return httpError(err)
	}

	h.metrics.LoginAttempt(metrics.LoginSucceeded)
	c.SetCookie(auth.NewRefreshCookie(refreshToken, h.refreshTTL, h.secureCookies))
	return c.JSON(http.StatusOK, TokenResponse{Token: accessToken})
}

// Refresh godoc
// @Summary Exchange a refresh token for an access token
// @Description Reads the refresh_token cookie, falling back to the JSON body. Sets the access_token cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token"
// @Success 200 {object} RefreshResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return httpError(apperrors.ErrAuthenticationRequired)
	}

	accessToken, user, err := h.authService.Refresh(c.Request().Context(), token)
	if err != nil {
		if !errors.Is(err, apperrors.ErrAuthenticationRequired) {
			h.log.WithError(err).Error("refresh failed")
		}
		return httpError(apperrors.ErrAuthenticationRequired)
	}

	c.SetCookie(auth.NewAccessCookie(accessToken, auth.AccessCookieMaxAge, h.secureCookies))
	return c.JSON(http.StatusOK, RefreshResponse{Token: accessToken, Role: user.Role})
}

// Logout godoc
// @Summary Logout user
// @Description Revokes the refresh token when one is presented and clears both auth cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if token, err := refreshTokenFrom(c); err == nil {
		if err := h.authService.Logout(c.Request().Context(), token); err != nil &&
			!errors.Is(err, apperrors.ErrAuthenticationRequired) {
			h.log.WithError(err).Warn("refresh token revocation failed")
		}
	}

	c.SetCookie(auth.ExpiredCookie(auth.RefreshTokenCookie, h.secureCookies))
	c.SetCookie(auth.ExpiredCookie(auth.AccessTokenCookie, h.secureCookies))
	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// Verify godoc
// @Summary Verify the bearer token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.Claims
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /auth/verify [get]
func (h *AuthHandler) Verify(c echo.Context) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return httpError(apperrors.ErrAuthenticationRequired)
	}
	return c.JSON(http.StatusOK, claims)
}

func refreshTokenFrom(c echo.Context) (string, error) {
	if cookie, err := c.Cookie(auth.RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	var req RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return "", apperrors.ErrAuthenticationRequired
	}
	return req.RefreshToken, nil
}

func invalidBody() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
		Error: "invalid request body",
		Code:  apperrors.CodeValidation,
	})
}
