package middleware

import (
	"net/http"
	"slices"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxEmail  = "email"

	ctxToken = "jwt"

	// SessionCookie carries the access token for browser clients.
	SessionCookie = "accessToken"
)

type Auth struct {
	secret []byte
}

func New(secret []byte) *Auth {
	return &Auth{secret: secret}
}

func (a *Auth) jwtConfig(optional bool) echojwt.Config {
	return echojwt.Config{
		ContextKey:  ctxToken,
		TokenLookup: "header:Authorization:Bearer ,cookie:" + SessionCookie,
		ParseTokenFunc: func(_ echo.Context, raw string) (any, error) {
			return tokens.AccessClaimsFromToken(raw, a.secret)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if optional {
				return nil
			}
			logging.FromContext(c.Request().Context()).Warn("auth_error", "status", 401, "reason", "missing or invalid token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid access token")
		},
		ContinueOnIgnoredError: optional,
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (a *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return echojwt.WithConfig(a.jwtConfig(false))(bindClaims(next, true))
}

// OptionalAuth identifies the caller when a valid token is present and
// lets anonymous requests through otherwise.
func (a *Auth) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return echojwt.WithConfig(a.jwtConfig(true))(bindClaims(next, false))
}

func (a *Auth) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return a.RequireAuth(RequireRole("admin")(next))
}

func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if !slices.Contains(allowed, role) {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}

func bindClaims(next echo.HandlerFunc, required bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, _ := c.Get(ctxToken).(*tokens.AccessClaims)
		if claims == nil {
			if required {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid access token")
			}
			return next(c)
		}

		id, err := claims.UserID()
		if err != nil {
			if required {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}
			return next(c)
		}

		c.Set(CtxUserID, id)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxEmail, claims.Email)

		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("user_id", id)
		c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))

		return next(c)
	}
}

func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(CtxUserID).(uint)
	return id, ok && id != 0
}

func Role(c echo.Context) string {
	role, _ := c.Get(CtxRole).(string)
	return role
}
