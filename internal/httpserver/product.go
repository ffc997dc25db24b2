package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/service"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/pagination"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func parseProductFilter(c echo.Context) (repo.ProductFilter, error) {
	var f repo.ProductFilter

	if v := c.QueryParam("category"); v != "" {
		cat := models.Category(v)
		f.Category = &cat
	}
	if v := c.QueryParam("inStock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "inStock must be true or false")
		}
		f.InStock = &b
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, p.name+" must be a number")
		}
		*p.dst = &d
	}
	return f, nil
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	f, err := parseProductFilter(c)
	if err != nil {
		l.Warn("get_products_error", "status", 400, "reason", "bad filter", "error", err)
		return err
	}

	page, err := h.Svc.ListProducts(ctx, f, c.QueryParam("cursor"), pagination.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return fail(l, "get_products", err)
	}
	return c.JSON(http.StatusOK, transport.NewListResponse(page))
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	items, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), pagination.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return fail(l, "search_products", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}
