package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Skotchmaster/teashop/pkg/events"
	"github.com/Skotchmaster/teashop/pkg/logging"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9]{10,11}$`)
)

func validEmail(s string) bool {
	return emailRe.MatchString(s)
}

// normalizePhone strips whitespace; the result is valid when it has
// 10 or 11 digits.
func normalizePhone(s string) (string, bool) {
	p := strings.Join(strings.Fields(s), "")
	return p, phoneRe.MatchString(p)
}

// publish is best-effort: a broker outage is logged, never returned.
func publish(ctx context.Context, p events.Publisher, topic, key string, ev events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}
