package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/teashop/internal/models"
)

const DefaultOrderTTL = 5 * time.Minute

// OrderCache stores serialized orders under "order:<id>".
type OrderCache struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

func NewOrderCache(client redis.UniversalClient, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = DefaultOrderTTL
	}
	return &OrderCache{Client: client, TTL: ttl}
}

func orderKey(id uint) string {
	return fmt.Sprintf("order:%d", id)
}

func (c *OrderCache) Get(ctx context.Context, id uint) (*models.Order, error) {
	raw, err := c.Client.Get(ctx, orderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", orderKey(id), err)
	}

	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		// a stale or foreign payload counts as a miss
		_ = c.Client.Del(ctx, orderKey(id)).Err()
		return nil, nil
	}
	return &o, nil
}

func (c *OrderCache) Set(ctx context.Context, o *models.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	if err := c.Client.Set(ctx, orderKey(o.ID), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", orderKey(o.ID), err)
	}
	return nil
}

func (c *OrderCache) Delete(ctx context.Context, id uint) error {
	if err := c.Client.Del(ctx, orderKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", orderKey(id), err)
	}
	return nil
}
