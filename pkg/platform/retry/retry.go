// Package retry provides an explicit bounded-retry wrapper for operations
// that can fail transiently, such as serializable transactions hitting a
// commit-time conflict. The caller supplies the retryable-error predicate
// and the attempt bound at the call site; nothing here is implicit.
package retry

import (
	"context"
	"time"
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff is the sleep before the second attempt; it doubles on each
	// further attempt. Zero disables sleeping.
	Backoff time.Duration
}

// Do runs fn up to cfg.MaxAttempts times, stopping early when fn succeeds,
// when retryable reports the error as permanent, or when ctx is done. The
// last error is returned unwrapped so callers can still classify it.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := cfg.Backoff
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
	}
	return err
}
