package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor points at the last row of the previous page. The id travels as
// a JSON string.
type Cursor struct {
	ID        uint      `json:"id,string"`
	CreatedAt time.Time `json:"createdAt"`
}

// wireCursor also reads tokens that carry the id as a bare number.
type wireCursor struct {
	ID        json.Number `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
}

func EncodeCursor(id uint, createdAt time.Time) string {
	b, _ := json.Marshal(Cursor{ID: id, CreatedAt: createdAt.UTC()})
	return base64.URLEncoding.EncodeToString(b)
}

// DecodeCursor returns nil for anything it cannot read, so a broken
// token behaves like a request for the first page.
func DecodeCursor(token string) *Cursor {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return nil
		}
	}

	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil
	}
	id, err := strconv.ParseUint(w.ID.String(), 10, 64)
	if err != nil || id == 0 || w.CreatedAt.IsZero() {
		return nil
	}
	return &Cursor{ID: uint(id), CreatedAt: w.CreatedAt.UTC()}
}

func Limit(requested int) int {
	if requested <= 0 {
		return DefaultLimit
	}
	if requested > MaxLimit {
		return MaxLimit
	}
	return requested
}

func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultLimit
	}
	return Limit(n)
}

// Apply adds the keyset condition and ordering. It asks for one extra
// row so Trim can tell whether another page exists.
func Apply(q *gorm.DB, c *Cursor, limit int) *gorm.DB {
	if c != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}
	return q.Order("created_at DESC").Order("id DESC").Limit(limit + 1)
}
