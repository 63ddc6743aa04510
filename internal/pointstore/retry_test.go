package pointstore

import (
	"context"
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestClassifyRecognisesBusyAsRecoverable(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrBusy}
	classified := Classify(err)
	if !classified.IsRecoverable() {
		t.Error("expected SQLITE_BUSY to be classified recoverable")
	}
}

func TestClassifyRecognisesConstraintAsNonRecoverable(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrConstraint}
	classified := Classify(err)
	if classified.IsRecoverable() {
		t.Error("expected SQLITE_CONSTRAINT to be classified non-recoverable")
	}
}

func TestClassifyFallsBackToMessageSniffing(t *testing.T) {
	classified := Classify(errors.New("database is locked"))
	if !classified.IsRecoverable() {
		t.Error("expected 'database is locked' message to be classified recoverable")
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetryFailsImmediatelyOnNonRecoverable(t *testing.T) {
	attempts := 0
	wantErr := sqlite3.Error{Code: sqlite3.ErrConstraint}
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for non-recoverable error, got %d", attempts)
	}
}

func TestWithRetryExhaustsAttemptsOnPersistentTransientFailure(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxRetryAttempts {
		t.Errorf("expected %d attempts, got %d", maxRetryAttempts, attempts)
	}
}
