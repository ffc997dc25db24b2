package pagination

import "time"

type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
	Limit      int
}

type Meta struct {
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
	Limit      int     `json:"limit"`
}

// Trim drops the probe row fetched by Apply and derives the next cursor
// from the last row that is actually returned.
func Trim[T any](rows []T, limit int, key func(T) (uint, time.Time)) Page[T] {
	p := Page[T]{Items: rows, Limit: limit}
	if p.Items == nil {
		p.Items = []T{}
	}
	if len(rows) > limit {
		p.HasMore = true
		p.Items = rows[:limit]
	}
	if p.HasMore && len(p.Items) > 0 {
		id, createdAt := key(p.Items[len(p.Items)-1])
		p.NextCursor = EncodeCursor(id, createdAt)
	}
	return p
}

func (p Page[T]) Meta() Meta {
	m := Meta{HasMore: p.HasMore, Limit: p.Limit}
	if p.NextCursor != "" {
		next := p.NextCursor
		m.NextCursor = &next
	}
	return m
}
