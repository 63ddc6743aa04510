package pointstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// maxRetryAttempts and retryBaseDelay implement the design retry
// policy: "retry only transient store errors (lock contention, I/O);
// never retry session-state errors", backing off exponentially
// (base * 2^attempt) capped at 3 attempts.
const (
	maxRetryAttempts = 3
	retryBaseDelay    = 50 * time.Millisecond
)

// RecoverableError is an IsRecoverable() contract for store errors so
// callers can classify without depending on sqlite3 types directly.
type RecoverableError interface {
	IsRecoverable() bool
}

// StoreError wraps an underlying store error with a recoverability
// verdict computed by Classify.
type StoreError struct {
	Recoverable bool
	Err         error
}

func (e *StoreError) Error() string { return e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }
func (e *StoreError) IsRecoverable() bool { return e.Recoverable }

// Classify distinguishes transient errors (SQLITE_BUSY / SQLITE_LOCKED,
// transient I/O) from non-transient ones (constraint violations,
// corruption, schema errors) invariant "retry only
// transient store errors ... never retry session-state errors".
func Classify(err error) *StoreError {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return &StoreError{Recoverable: true, Err: err}
		default:
			return &StoreError{Recoverable: false, Err: err}
		}
	}

	if strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy") {
		return &StoreError{Recoverable: true, Err: err}
	}
	return &StoreError{Recoverable: false, Err: err}
}

// WithRetry runs op, retrying up to maxRetryAttempts times with
// exponential backoff (base * 2^attempt) whenever Classify judges the
// returned error recoverable. Non-recoverable errors return
// immediately on first failure.
func WithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		classified := Classify(err)
		if !classified.IsRecoverable() {
			return err
		}
		lastErr = err

		delay := retryBaseDelay * time.Duration(1<<uint(attempt)) //nolint:gosec // attempt bounded by maxRetryAttempts
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("exceeded %d retry attempts: %w", maxRetryAttempts, lastErr)
}
