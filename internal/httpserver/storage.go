package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/storage"
)

type StorageHTTP struct {
	Bucket storage.Bucket
}

// Serve streams an object by key, e.g. /api/storage/avatars/1700000000000-x.png.
func (h *StorageHTTP) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "storage.serve")

	key := strings.Trim(c.Param("*"), "/")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "File key is required")
	}

	obj, err := h.Bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			l.Warn("storage_get_error", "status", 404, "key", key)
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		l.Error("storage_get_error", "status", 500, "key", key, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read file").SetInternal(err)
	}

	defer obj.Body.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	hdr := c.Response().Header()
	if obj.ETag != "" {
		hdr.Set("ETag", obj.ETag)
	}
	hdr.Set("Cache-Control", "public, max-age=31536000")
	return c.Stream(http.StatusOK, ct, obj.Body)
}
