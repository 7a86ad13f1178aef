// Package retry runs startup and delivery operations with capped exponential
// backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config holds the backoff policy
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// Startup is the policy used while waiting for backing services on boot.
func Startup() *Config {
	return &Config{
		MaxAttempts:       5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out or ctx ends. The returned error wraps the last failure.
func Do[T any](ctx context.Context, cfg *Config, log *slog.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg == nil {
		cfg = Startup()
	}
	if log == nil {
		log = slog.Default()
	}

	wait := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, fmt.Errorf("%s: %w", op, perm.err)
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		log.Warn("retrying after failure",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		wait = nextBackoff(wait, cfg)
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

func nextBackoff(current time.Duration, cfg *Config) time.Duration {
	next := time.Duration(float64(current) * cfg.BackoffMultiplier)
	if next > cfg.MaxBackoff || next <= 0 {
		return cfg.MaxBackoff
	}
	return next
}
