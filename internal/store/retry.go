package store

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultRetryWindow bounds RetryWithBackoff.
const defaultRetryWindow = 10 * time.Second

// RetryWithBackoff wraps an operation with exponential backoff retry logic.
// Retries on transient SQLite errors (SQLITE_BUSY, "database is locked").
func RetryWithBackoff(operation func() error) error {
	return RetryWithin(defaultRetryWindow, operation)
}

// RetryWithin is RetryWithBackoff with a caller-chosen total retry window.
func RetryWithin(maxElapsed time.Duration, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = maxElapsed
	b.RandomizationFactor = 0.1

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

// isRetryableError determines if an error should be retried.
//
// Error detection relies on modernc.org/sqlite error message strings.
// Current baseline: modernc.org/sqlite v1.45+.
func isRetryableError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY")
}
