package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prepai/internal/auth"
	"prepai/internal/model"
)

func TestUserHandler_Me(t *testing.T) {
	jwtService, err := auth.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	user := &model.User{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: "$2a$04$secret-hash",
		FirstName:    "Ada",
		Role:         model.RoleUser,
	}
	token, err := jwtService.GenerateAccessToken(auth.IdentityFromUser(user))
	require.NoError(t, err)

	svc := new(MockAuthService)
	svc.On("CurrentUser", mock.Anything, user.ID.String()).Return(user, nil)

	e := newEcho()
	e.GET("/api/me", NewUserHandler(svc).Me, auth.BearerMiddleware(jwtService))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	svc.AssertExpectations(t)
}

func TestUserHandler_MeRequiresToken(t *testing.T) {
	jwtService, err := auth.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	e := newEcho()
	e.GET("/api/me", NewUserHandler(new(MockAuthService)).Me, auth.BearerMiddleware(jwtService))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
