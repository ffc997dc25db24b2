package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/service"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
	middleware "github.com/Skotchmaster/teashop/pkg/middleware/auth"
	"github.com/Skotchmaster/teashop/pkg/pagination"
	"github.com/Skotchmaster/teashop/pkg/storage"
)

type UserHTTP struct {
	Auth   *service.AuthService
	Users  *service.UserService
	Orders *service.OrderService
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Auth.Register(ctx, req)
	if err != nil {
		return fail(l, "register", err)
	}

	setSessionCookie(c, res)
	l.Info("register_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusCreated, res)
}

func (h *UserHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Auth.Login(ctx, req)
	if err != nil {
		return fail(l, "login", err)
	}

	setSessionCookie(c, res)
	l.Info("login_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, res)
}

// setSessionCookie hands browser clients the same token as the body.
func setSessionCookie(c echo.Context, res *transport.AuthResponse) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		MaxAge:   int(time.Until(res.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.me")

	id, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.Users.GetProfile(ctx, id)
	if err != nil {
		return fail(l, "get_profile", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHTTP) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update_me")

	id, err := currentUser(c)
	if err != nil {
		return err
	}

	var req transport.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_profile_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Users.UpdateProfile(ctx, id, req)
	if err != nil {
		return fail(l, "update_profile", err)
	}
	return c.JSON(http.StatusOK, user)
}

// UploadAvatar takes an optional multipart "file". Without one the user
// gets a generated placeholder.
func (h *UserHTTP) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.avatar")

	id, err := currentUser(c)
	if err != nil {
		return err
	}

	var file *storage.File
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		src, err := fh.Open()
		if err != nil {
			l.Warn("avatar_error", "status", 400, "reason", "cannot open upload", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
		}
		defer src.Close()
		file = &storage.File{Name: fh.Filename, ContentType: fh.Header.Get(echo.HeaderContentType), Body: src}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		l.Warn("avatar_error", "status", 400, "reason", "bad multipart body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
	}

	user, err := h.Users.SetAvatar(ctx, id, file, storageBaseURL(c))
	if err != nil {
		return fail(l, "avatar", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.my_orders")

	id, err := currentUser(c)
	if err != nil {
		return err
	}

	page, err := h.Orders.ListOrders(ctx, repo.OrderFilter{UserID: &id}, c.QueryParam("cursor"), pagination.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return fail(l, "my_orders", err)
	}
	return c.JSON(http.StatusOK, transport.NewListResponse(page))
}
