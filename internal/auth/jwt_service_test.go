package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepai/internal/model"
)

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	return svc
}

func testIdentity() Identity {
	return Identity{
		UserID:    "3f1c9a52-5f7e-4a61-9d0f-1b2c3d4e5f60",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      model.RoleAuthor,
	}
}

func TestNewJWTService_EmptySecret(t *testing.T) {
	svc, err := NewJWTService("", time.Hour, time.Hour)
	assert.Nil(t, svc)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestJWTService_IssueOnZeroValueFails(t *testing.T) {
	var svc JWTService
	token, err := svc.Issue(testIdentity(), time.Hour)
	assert.Empty(t, token)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	identities := []Identity{
		testIdentity(),
		{UserID: "u-1", Email: "x@y.io", Role: model.RoleUser},
		{UserID: "u-2", Email: "root@corp.example", FirstName: "Ro", LastName: "Ot", Role: model.RoleAdmin},
	}

	for _, id := range identities {
		token, err := svc.Issue(id, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, len(strings.Split(token, ".")))

		claims, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, id, claims.Identity)
		assert.Equal(t, id.UserID, claims.Subject)
	}
}

func TestJWTService_DefaultTTL(t *testing.T) {
	svc := newTestService(t)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	token, err := svc.Issue(testIdentity(), 0)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestJWTService_ExpiredIsDistinctFromInvalid(t *testing.T) {
	svc := newTestService(t)
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.Issue(testIdentity(), time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(59 * time.Second) }
	_, err = svc.Verify(token)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_VerifyFailures(t *testing.T) {
	svc := newTestService(t)
	other, err := NewJWTService("another-secret", time.Hour, time.Hour)
	require.NoError(t, err)

	foreign, err := other.Issue(testIdentity(), time.Hour)
	require.NoError(t, err)

	_, refresh, err := svc.GenerateRefreshToken("u-1")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "u-1",
		"typ":    "access",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u-1",
		"typ":    "access",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"refresh used as access", refresh, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"no expiry", noExpiry, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := svc.Verify(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTService_RefreshToken(t *testing.T) {
	svc := newTestService(t)

	tokenID, token, err := svc.GenerateRefreshToken("u-42")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenID)

	claims, err := svc.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, tokenID, claims.ID)
	assert.Equal(t, "u-42", claims.Subject)

	access, err := svc.GenerateAccessToken(testIdentity())
	require.NoError(t, err)
	_, err = svc.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
