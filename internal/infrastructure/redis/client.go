package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/laala/laala-api/internal/reliability/retry"
)

// Client wraps the Redis client with the operations the API needs
type Client struct {
	rdb *redis.Client
}

// NewClient connects to url, retrying while Redis comes up.
func NewClient(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	_, err = retry.Do(ctx, retry.Startup(), logger, "redis ping", func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// fixedWindowScript runs INCR and the first-hit PEXPIRE as one atomic step.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Incr counts one hit on key inside a window starting at the first hit and
// returns the hit count so far.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := fixedWindowScript.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return n, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
