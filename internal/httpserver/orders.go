package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/logging"
	authmw "github.com/Skotchmaster/elearning/internal/middleware/auth"
	"github.com/Skotchmaster/elearning/internal/service"
	"github.com/Skotchmaster/elearning/internal/transport"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_create")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.OrderRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("create_order_error", "status", 400, "error", err)
		return err
	}

	order, err := h.Svc.CreateOrder(ctx, u, req)
	if err != nil {
		l.Warn("create_order_failed", "course_id", req.CourseID, "error", err)
		return err
	}
	l.Info("order_created", "order_id", order.ID, "course_id", order.CourseID)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "order": order})
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	orders, err := h.Svc.ListOrders(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "orders": orders})
}

func (h *OrderHTTP) PublishableKey(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"publishablekey": h.Svc.PublishableKey})
}

func (h *OrderHTTP) NewPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_new_payment")

	var req transport.NewPaymentRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("new_payment_error", "status", 400, "error", err)
		return err
	}

	secret, err := h.Svc.NewPayment(ctx, req.Amount)
	if err != nil {
		l.Error("new_payment_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "client_secret": secret})
}
