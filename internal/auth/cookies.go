package auth

import (
	"net/http"
	"time"
)

// Cookie names shared by the API and the edge guard.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// AccessCookieMaxAge is the lifetime of the access token cookie set by the guard.
const AccessCookieMaxAge = 24 * time.Hour

// NewAccessCookie builds the HTTP-only access token cookie.
func NewAccessCookie(token string, maxAge time.Duration, secure bool) *http.Cookie {
	return tokenCookie(AccessTokenCookie, token, maxAge, secure)
}

// NewRefreshCookie builds the HTTP-only refresh token cookie.
func NewRefreshCookie(token string, maxAge time.Duration, secure bool) *http.Cookie {
	return tokenCookie(RefreshTokenCookie, token, maxAge, secure)
}

// ExpiredCookie instructs the browser to drop the named cookie.
func ExpiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func tokenCookie(name, value string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
