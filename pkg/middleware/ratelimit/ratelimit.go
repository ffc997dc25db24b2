package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/teashop/pkg/logging"
)

type Preset struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	Message     string
}

var (
	// Strict guards credential endpoints.
	Strict   = Preset{Name: "strict", MaxRequests: 5, Window: time.Minute, Message: "Too many attempts. Please wait a moment before trying again."}
	Moderate = Preset{Name: "moderate", MaxRequests: 100, Window: time.Minute, Message: "Too many requests. Please slow down."}
	Relaxed  = Preset{Name: "relaxed", MaxRequests: 1000, Window: time.Minute, Message: "Rate limit exceeded."}
	Admin    = Preset{Name: "admin", MaxRequests: 200, Window: time.Minute, Message: "Admin rate limit exceeded."}
)

// Store counts hits in a fixed window. Hit returns the count including
// the current request and the moment the window resets.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

type exceededResponse struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

// ClientID resolves the caller address from proxy headers, falling back
// to "unknown" so every unidentified client shares one bucket.
func ClientID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	if v := r.Header.Get(echo.HeaderXForwardedFor); v != "" {
		if first := strings.TrimSpace(strings.Split(v, ",")[0]); first != "" {
			return first
		}
	}
	if v := strings.TrimSpace(r.Header.Get(echo.HeaderXRealIP)); v != "" {
		return v
	}
	return "unknown"
}

func Middleware(store Store, p Preset) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := p.Name + ":" + ClientID(c.Request())

			count, resetAt, err := store.Hit(ctx, key, p.Window)
			if err != nil {
				// fail open
				logging.FromContext(ctx).Error("rate_limit_error", "preset", p.Name, "error", err)
				return next(c)
			}

			if count <= p.MaxRequests {
				return next(c)
			}

			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			h := c.Response().Header()
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			h.Set("X-RateLimit-Limit", strconv.Itoa(p.MaxRequests))
			h.Set("X-RateLimit-Remaining", "0")
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.UnixMilli(), 10))

			logging.FromContext(ctx).Warn("rate_limited", "status", 429, "preset", p.Name, "count", count)
			return c.JSON(http.StatusTooManyRequests, exceededResponse{
				Message:    p.Message,
				Error:      "RATE_LIMIT_EXCEEDED",
				RetryAfter: retryAfter,
			})
		}
	}
}
