package auth

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/service"
)

type ctxKey struct{}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}

// CurrentUser returns the identity attached by one of the gates.
func CurrentUser(c echo.Context) (*models.User, error) {
	u, ok := UserFromContext(c.Request().Context())
	if !ok {
		return nil, service.ErrLoginRequired
	}
	return u, nil
}

func setUser(c echo.Context, u *models.User) {
	c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), u)))
}
