package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/service"
)

type NotificationHTTP struct {
	Svc *service.NotificationService
}

func (h *NotificationHTTP) List(c echo.Context) error {
	ns, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "notifications": ns})
}

func (h *NotificationHTTP) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification_mark_read")

	id := c.Param("id")
	ns, err := h.Svc.MarkRead(ctx, id)
	if err != nil {
		l.Warn("mark_read_failed", "notification_id", id, "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "notifications": ns})
}

type AnalyticsHTTP struct {
	Svc *service.AnalyticsService
}

func (h *AnalyticsHTTP) Users(c echo.Context) error {
	res, err := h.Svc.Users(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": res})
}

func (h *AnalyticsHTTP) Courses(c echo.Context) error {
	res, err := h.Svc.Courses(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "courses": res})
}

func (h *AnalyticsHTTP) Orders(c echo.Context) error {
	res, err := h.Svc.Orders(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "orders": res})
}
