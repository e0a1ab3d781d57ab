// Package retry wraps single venue calls with bounded retry and linear
// backoff. It is deliberately not applied around a whole fallback chain:
// only the top of the chain gets a retry budget, so a dead primary cannot
// multiply delays across every fallback stage.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config controls the retry policy.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is multiplied by the attempt number for linear backoff:
	// delay = BaseDelay * attempt.
	BaseDelay time.Duration
}

// Defaults returns the standard venue-call policy.
func Defaults() Config {
	return Config{Attempts: 3, BaseDelay: time.Second}
}

func (c Config) normalized() Config {
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	return c
}

// Do executes op up to cfg.Attempts times, sleeping BaseDelay*attempt
// between tries. It returns the first successful result, or the last
// observed error once the budget is exhausted. The backoff sleep honours
// ctx; cancellation surfaces as ctx.Err().
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.Attempts {
			break
		}

		timer := time.NewTimer(cfg.BaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("retry: %d attempt(s) exhausted: %w", cfg.Attempts, lastErr)
}
