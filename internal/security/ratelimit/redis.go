package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Incrementer is the fixed-window primitive of the Redis client.
type Incrementer interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// FixedWindow is a Counter shared by every API instance through Redis.
type FixedWindow struct {
	client Incrementer
	limit  int64
	window time.Duration
	prefix string
}

// NewFixedWindow allows limit requests per window for each key.
func NewFixedWindow(client Incrementer, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{client: client, limit: int64(limit), window: window, prefix: "laala:ratelimit:"}
}

// Allow implements Counter.
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	n, err := f.client.Incr(ctx, f.prefix+key, f.window)
	if err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return n <= f.limit, nil
}
