package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	busyRetryLimit   = 6
	busyInitialDelay = 25 * time.Millisecond
)

// withBusyRetry runs fn, retrying with capped exponential backoff while
// SQLite reports the database busy or locked. Exhausting the budget
// surfaces ErrStoreUnavailable; other errors pass through untouched.
func withBusyRetry(ctx context.Context, fn func() error) error {
	delay := busyInitialDelay
	var err error
	for attempt := 0; attempt < busyRetryLimit; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
