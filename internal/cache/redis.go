package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-bff/internal/storage"
	"storefront-bff/internal/telemetry"
)

// Client wraps Redis for response caching, rate limiting and as the
// gateway's storage.KV.
type Client struct {
	rdb *redis.Client
}

var _ storage.KV = (*Client)(nil)

func NewClient(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &Client{rdb: rdb}, nil
}

// IsRateLimited counts a hit for key in the current window. Redis failures
// let the request through.
func (c *Client) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) bool {
	rkey := fmt.Sprintf("ratelimit:%s", key)

	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.Expire(ctx, rkey, window)
	_, err := pipe.Exec(ctx)

	if err != nil {
		return false
	}

	return incr.Val() > int64(limit)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheMiss()
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	telemetry.CacheHit()
	return b, nil
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
