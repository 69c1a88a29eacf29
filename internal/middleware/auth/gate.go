package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/cache"
	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/service"
	"github.com/Skotchmaster/elearning/internal/tokens"
)

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*service.Grant, error)
}

// Gate authenticates requests from the access cookie against the session
// cache. A valid token without a session is treated as logged out.
type Gate struct {
	Tokens    *tokens.Service
	Sessions  service.SessionStore
	Refresher Refresher
	Cookies   tokens.CookiePolicy
}

func (g *Gate) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := cookieValue(c, tokens.AccessCookie)
		if raw == "" {
			return service.ErrLoginRequired
		}
		u, err := g.authenticate(c.Request().Context(), raw)
		if err != nil {
			return err
		}
		setUser(c, u)
		return next(c)
	}
}

// OptionalAuth attaches the identity when a live session backs the access
// cookie and otherwise lets the request through anonymously.
func (g *Gate) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if raw := cookieValue(c, tokens.AccessCookie); raw != "" {
			if u, err := g.authenticate(c.Request().Context(), raw); err == nil {
				setUser(c, u)
			}
		}
		return next(c)
	}
}

// AutoRefresh behaves like RequireAuth while the access token is valid.
// Once it is expired or missing, a valid refresh cookie rotates both
// tokens in place and the request continues with the refreshed identity.
func (g *Gate) AutoRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if raw := cookieValue(c, tokens.AccessCookie); raw != "" {
			u, err := g.authenticate(ctx, raw)
			if err == nil {
				setUser(c, u)
				return next(c)
			}
			if !errors.Is(err, errAccessExpired) {
				return err
			}
		}

		refresh := cookieValue(c, tokens.RefreshCookie)
		if refresh == "" {
			return service.ErrLoginRequired
		}
		grant, err := g.Refresher.Refresh(ctx, refresh)
		if err != nil {
			return err
		}
		SetAuthCookies(c, g.Cookies, grant)
		logging.FromContext(ctx).Info("session_auto_refreshed", "user_id", grant.User.ID)

		setUser(c, grant.User)
		return next(c)
	}
}

var errAccessExpired = fmt.Errorf("%w: %w", service.ErrAccessTokenInvalid, tokens.ErrTokenExpired)

func (g *Gate) authenticate(ctx context.Context, raw string) (*models.User, error) {
	claims, err := g.Tokens.VerifyAccessToken(raw)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil, errAccessExpired
		}
		return nil, service.ErrAccessTokenInvalid
	}
	u, err := g.Sessions.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, service.ErrLoginRequired
		}
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return u, nil
}

// AuthorizeRoles must run after a gate.
func AuthorizeRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := CurrentUser(c)
			if err != nil {
				return err
			}
			if !slices.Contains(roles, u.Role) {
				return apperr.New(apperr.Forbidden, fmt.Sprintf("Role: %s is not allowed to access this resource", u.Role))
			}
			return next(c)
		}
	}
}

func SetAuthCookies(c echo.Context, p tokens.CookiePolicy, g *service.Grant) {
	c.SetCookie(p.Create(tokens.AccessCookie, g.AccessToken, g.AccessExp))
	c.SetCookie(p.Create(tokens.RefreshCookie, g.RefreshToken, g.RefreshExp))
}

func ClearAuthCookies(c echo.Context, p tokens.CookiePolicy) {
	c.SetCookie(p.Delete(tokens.AccessCookie))
	c.SetCookie(p.Delete(tokens.RefreshCookie))
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil || ck == nil {
		return ""
	}
	return ck.Value
}
