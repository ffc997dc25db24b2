package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/internal/service"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return fail(l, "get_cart", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *CartHTTP) ReplaceCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.replace")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req transport.ReplaceCartRequest
	if err := c.Bind(&req); err != nil || req.Items == nil {
		l.Warn("replace_cart_error", "status", 400, "reason", "items must be an array", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "items must be an array")
	}

	items, err := h.Svc.ReplaceCart(ctx, userID, *req.Items)
	if err != nil {
		return fail(l, "replace_cart", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.Svc.ClearCart(ctx, userID); err != nil {
		return fail(l, "clear_cart", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req transport.CartItemInput
	if err := c.Bind(&req); err != nil {
		l.Warn("add_item_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	item, err := h.Svc.AddToCart(ctx, userID, req)
	if err != nil {
		return fail(l, "add_item", err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := parseID(c, "productId")
	if err != nil {
		return err
	}

	var req transport.SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	item, err := h.Svc.SetQuantity(ctx, userID, productID, req.VariantID, req.Quantity)
	if err != nil {
		return fail(l, "set_quantity", err)
	}
	if item == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := parseID(c, "productId")
	if err != nil {
		return err
	}

	var variantID *uint
	if v := c.QueryParam("variantId"); v != "" {
		n, err := parseUintParam(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "variantId must be a positive integer")
		}
		variantID = &n
	}

	if err := h.Svc.RemoveItem(ctx, userID, productID, variantID); err != nil {
		return fail(l, "remove_item", err)
	}
	return c.NoContent(http.StatusNoContent)
}
