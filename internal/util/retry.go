// Package util provides small shared helpers for dofs.
package util

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// WithLockRetry runs fn, retrying with exponential backoff while SQLite
// reports a transient lock. Two store files in one data directory can
// contend on WAL checkpoints; a brief wait clears it. Any other error
// returns immediately.
func WithLockRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsLockError),
		retry.Context(ctx),
	)
}

// IsLockError reports whether an error is SQLite's transient
// "database is locked".
func IsLockError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}
