package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/service"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/pagination"
	"github.com/Skotchmaster/teashop/pkg/storage"
)

type AdminHTTP struct {
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Users    *service.UserService
	Uploader *storage.Uploader
}

func (h *AdminHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_products")

	f, err := parseProductFilter(c)
	if err != nil {
		return err
	}
	page, err := h.Catalog.ListProducts(ctx, f, c.QueryParam("cursor"), pagination.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return fail(l, "admin_list_products", err)
	}
	return c.JSON(http.StatusOK, transport.NewListResponse(page))
}

func (h *AdminHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("product_create_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Catalog.CreateProduct(ctx, req)
	if err != nil {
		return fail(l, "product_create", err)
	}

	l.Info("create_product_success", "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *AdminHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_product")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req transport.UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("product_update_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Catalog.UpdateProduct(ctx, id, req)
	if err != nil {
		return fail(l, "product_update", err)
	}

	l.Info("update_product_success", "product_id", id)
	return c.JSON(http.StatusOK, product)
}

func (h *AdminHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete_product")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteProduct(ctx, id); err != nil {
		return fail(l, "product_delete", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	var f repo.OrderFilter
	if v := c.QueryParam("status"); v != "" {
		st := models.OrderStatus(v)
		f.Status = &st
	}

	page, err := h.Orders.ListOrders(ctx, f, c.QueryParam("cursor"), pagination.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return fail(l, "admin_list_orders", err)
	}
	return c.JSON(http.StatusOK, transport.NewListResponse(page))
}

func (h *AdminHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_users")

	page, err := h.Users.ListUsers(ctx, c.QueryParam("cursor"), pagination.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return fail(l, "admin_list_users", err)
	}
	return c.JSON(http.StatusOK, transport.NewListResponse(page))
}

// Upload stores a product image. ?folder picks the key prefix.
func (h *AdminHTTP) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.upload")

	fh, err := c.FormFile("file")
	if err != nil {
		l.Warn("upload_error", "status", 400, "reason", "no file", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		l.Warn("upload_error", "status", 400, "reason", "cannot open upload", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	defer src.Close()

	up, err := h.Uploader.Upload(ctx, storage.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        src,
	}, storageBaseURL(c), storage.UploadOptions{Folder: c.QueryParam("folder")})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFile) {
			l.Warn("upload_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, strings.TrimPrefix(err.Error(), storage.ErrInvalidFile.Error()+": "))
		}
		l.Error("upload_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store file").SetInternal(err)
	}

	l.Info("upload_success", "key", up.Key)
	return c.JSON(http.StatusCreated, up)
}
