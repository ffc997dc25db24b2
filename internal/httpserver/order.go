package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/internal/service"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
	middleware "github.com/Skotchmaster/teashop/pkg/middleware/auth"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

// CreateOrder accepts guests; a valid bearer token links the order to the
// signed-in user.
func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var userID *uint
	if id, ok := middleware.UserID(c); ok {
		userID = &id
	}

	order, err := h.Svc.CreateOrder(ctx, req, userID)
	if err != nil {
		return fail(l, "create_order", err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.Svc.GetOrder(ctx, id, caller(c))
	if err != nil {
		return fail(l, "get_order", err)
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateStatus serves both the admin route and the customer cancel route;
// the service decides what the caller may do.
func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req transport.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_status_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.UpdateStatus(ctx, id, req.Status, caller(c))
	if err != nil {
		return fail(l, "update_status", err)
	}
	return c.JSON(http.StatusOK, order)
}
