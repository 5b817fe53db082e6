// Package guard is the edge route guard that sits in front of the web front
// end: it refreshes access tokens for dashboard navigation and hides routes a
// role may not open.
package guard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"prepai/internal/auth"
	"prepai/internal/metrics"
)

// RoleHeader carries the caller's role to the upstream.
const RoleHeader = "X-User-Role"

// Config configures a Guard.
type Config struct {
	// SignInPath is where unauthenticated callers are sent.
	SignInPath string
	// AuthPaths are the sign-in/sign-up pages an authenticated caller is sent away from.
	AuthPaths []string
	// LandingPath is where authenticated callers land from AuthPaths.
	LandingPath string
	// ProtectedPrefix marks the application routes.
	ProtectedPrefix string
	// NotFoundPath replaces the request path when the role may not open it.
	NotFoundPath  string
	SecureCookies bool

	Permissions *PermissionTable
	Exchanger   Exchanger
	Metrics     *metrics.Metrics
	Logger      logrus.FieldLogger
}

// Guard decides, per request, whether to pass, redirect or rewrite.
type Guard struct {
	cfg Config
	log logrus.FieldLogger
}

// New builds a Guard, filling unset paths with the defaults.
func New(cfg Config) (*Guard, error) {
	if cfg.Exchanger == nil {
		return nil, errors.New("guard: exchanger is required")
	}
	if cfg.Permissions == nil {
		return nil, errors.New("guard: permission table is required")
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/auth/login"
	}
	if len(cfg.AuthPaths) == 0 {
		cfg.AuthPaths = []string{cfg.SignInPath, "/auth/signup"}
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/dashboard"
	}
	if cfg.ProtectedPrefix == "" {
		cfg.ProtectedPrefix = "/dashboard"
	}
	if cfg.NotFoundPath == "" {
		cfg.NotFoundPath = "/404"
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Guard{cfg: cfg, log: log}, nil
}

// Middleware returns the echo middleware. It must run before the handler or
// proxy that serves the pages.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			// only the guard may assert a role to the upstream
			req.Header.Del(RoleHeader)
			p := cleanPath(req.URL.Path)
			if p != req.URL.Path {
				// decide and forward on the same resolved path
				req.URL.Path, req.URL.RawPath = p, ""
			}
			switch {
			case g.skip(p):
				return next(c)
			case g.isAuthPath(p):
				return g.authEntry(c, next)
			case g.isProtected(p):
				return g.protected(c, next)
			default:
				return next(c)
			}
		}
	}
}

// authEntry sends callers with an exchangeable refresh token to the landing
// page. A stale or unusable token is dropped and the page is served.
func (g *Guard) authEntry(c echo.Context, next echo.HandlerFunc) error {
	token := refreshToken(c)
	if token == "" {
		return next(c)
	}

	log := g.log.WithField("path", c.Request().URL.Path)
	if _, err := g.exchange(c.Request().Context(), token); err != nil {
		log.WithError(err).Debug("stale refresh token on auth page")
		c.SetCookie(auth.ExpiredCookie(auth.RefreshTokenCookie, g.cfg.SecureCookies))
		g.cfg.Metrics.GuardDecision(metrics.DecisionPassThrough)
		return next(c)
	}

	log.Debug("authenticated caller redirected to landing")
	g.cfg.Metrics.GuardDecision(metrics.DecisionRedirect)
	return c.Redirect(http.StatusTemporaryRedirect, g.cfg.LandingPath)
}

// protected exchanges the refresh token, attaches the new access token and
// authorizes the path for the caller's role.
func (g *Guard) protected(c echo.Context, next echo.HandlerFunc) error {
	req := c.Request()
	log := g.log.WithField("path", req.URL.Path)

	token := refreshToken(c)
	if token == "" {
		log.Debug("no refresh token")
		return g.signIn(c)
	}

	ex, err := g.exchange(req.Context(), token)
	if err != nil {
		log.WithError(err).Info("refresh exchange failed")
		return g.signIn(c)
	}

	access := auth.NewAccessCookie(ex.AccessToken, auth.AccessCookieMaxAge, g.cfg.SecureCookies)
	c.SetCookie(access)
	setRequestCookie(req, access)
	req.Header.Set(RoleHeader, string(ex.Role))

	log = log.WithField("role", ex.Role)
	if !g.cfg.Permissions.Allowed(ex.Role, req.URL.Path) {
		log.Info("route hidden from role")
		g.cfg.Metrics.GuardDecision(metrics.DecisionNotFound)
		req.URL.Path = g.cfg.NotFoundPath
		req.URL.RawPath = ""
		return next(c)
	}

	log.Debug("route allowed")
	g.cfg.Metrics.GuardDecision(metrics.DecisionAllow)
	return next(c)
}

// exchange converts a panic in the exchanger into an error so it takes the
// authentication-failure path.
func (g *Guard) exchange(ctx context.Context, token string) (ex *Exchange, err error) {
	defer func() {
		if r := recover(); r != nil {
			ex, err = nil, fmt.Errorf("exchange panicked: %v", r)
		}
	}()
	ex, err = g.cfg.Exchanger.Exchange(ctx, token)
	if err == nil && ex == nil {
		err = ErrAccessTokenMissing
	}
	return ex, err
}

func (g *Guard) signIn(c echo.Context) error {
	g.cfg.Metrics.GuardDecision(metrics.DecisionSignIn)
	c.SetCookie(auth.ExpiredCookie(auth.RefreshTokenCookie, g.cfg.SecureCookies))

	target := g.cfg.SignInPath + "?" + url.Values{"from": {c.Request().URL.Path}}.Encode()
	return c.Redirect(http.StatusTemporaryRedirect, target)
}

func (g *Guard) isAuthPath(p string) bool {
	p = trimSlash(p)
	for _, a := range g.cfg.AuthPaths {
		if p == a {
			return true
		}
	}
	return false
}

func (g *Guard) isProtected(p string) bool {
	return p == g.cfg.ProtectedPrefix || strings.HasPrefix(p, g.cfg.ProtectedPrefix+"/")
}

// skip lets framework assets, API calls and files through untouched. Dotted
// paths under the protected prefix are still guarded.
func (g *Guard) skip(p string) bool {
	if strings.HasPrefix(p, "/_next") || strings.HasPrefix(p, "/api/") {
		return true
	}
	return !g.isProtected(p) && strings.Contains(path.Base(p), ".")
}

func refreshToken(c echo.Context) string {
	cookie, err := c.Cookie(auth.RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setRequestCookie replaces (or adds) a cookie on the request forwarded upstream.
func setRequestCookie(req *http.Request, cookie *http.Cookie) {
	cookies := req.Cookies()
	req.Header.Del("Cookie")
	for _, existing := range cookies {
		if existing.Name != cookie.Name {
			req.AddCookie(existing)
		}
	}
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
}
