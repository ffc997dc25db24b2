package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/internal/service"
	middleware "github.com/Skotchmaster/teashop/pkg/middleware/auth"
)

// fail maps a service error onto an HTTP error and logs it at a level
// matching the status.
func fail(l *slog.Logger, op string, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		code = http.StatusConflict
	}

	if code == http.StatusInternalServerError {
		l.Error(op+"_error", "status", code, "error", err)
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	l.Warn(op+"_error", "status", code, "error", err)
	return echo.NewHTTPError(code, publicMessage(err))
}

// publicMessage drops the sentinel prefix from "validation: Product ...".
func publicMessage(err error) string {
	msg := err.Error()
	for _, s := range []error{service.ErrValidation, service.ErrUnauthorized, service.ErrForbidden, service.ErrNotFound, service.ErrConflict} {
		if rest, ok := strings.CutPrefix(msg, s.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

func parseUintParam(v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("zero id")
	}
	return uint(n), nil
}

func parseID(c echo.Context, name string) (uint, error) {
	n, err := parseUintParam(c.Param(name))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return n, nil
}

func caller(c echo.Context) service.Caller {
	id, _ := middleware.UserID(c)
	return service.Caller{UserID: id, Role: middleware.Role(c)}
}

func currentUser(c echo.Context) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid access token")
	}
	return id, nil
}

// storageBaseURL is where uploaded objects are served from.
func storageBaseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + "/api/storage"
}
