package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1d", want: 24 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "15m", want: 15 * time.Minute},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "", wantErr: true},
		{in: "0d", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.LoginRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateWindow)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "/auth/login", cfg.SignInPath)
	assert.False(t, cfg.IsDevelopment())
	assert.Nil(t, cfg.Permissions)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_MissingSecretIsFatal(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "JWT_SECRET is required")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("TOKEN_EXPIRY", "2h")
	t.Setenv("LOGIN_RATE_LIMIT", "3")
	t.Setenv("IDENTITY_PROVIDER_URL", "http://idp:8080/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 3, cfg.LoginRateLimit)
	assert.Equal(t, "http://idp:8080", cfg.IdentityProviderURL)
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,203.0.113.7")

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.TrustedProxies, 2)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedProxies[0].String())
	assert.Equal(t, "203.0.113.7/32", cfg.TrustedProxies[1].String())
}

func TestLoad_InvalidTrustedProxyIsFatal(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TRUSTED_PROXIES", "not-an-ip")

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}

func TestLoad_PermissionsFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	body := "guard:\n  permissions:\n    USER:\n      - /dashboard/home\n    ADMIN:\n      - /dashboard/*\n"
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CONFIG_FILE", file)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"/dashboard/home"}, cfg.Permissions["USER"])
	assert.Equal(t, []string{"/dashboard/*"}, cfg.Permissions["ADMIN"])
}

func TestValidate_RejectsUnknownBackends(t *testing.T) {
	cfg := &Config{
		JWTSecret:         "s",
		TokenTTL:          time.Hour,
		RefreshTokenTTL:   time.Hour,
		BcryptCost:        10,
		PasswordMinLength: 8,
		LoginRateLimit:    5,
		LoginRateWindow:   time.Minute,
		IdentityTimeout:   time.Second,
		DBDriver:          "sqlite",
		RateLimitBackend:  "memcached",
	}

	err := cfg.Validate()
	assert.ErrorContains(t, err, "DB_DRIVER")
	assert.ErrorContains(t, err, "RATE_LIMIT_BACKEND")
}
