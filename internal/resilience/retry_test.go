package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func alwaysRetryable(error) bool { return true }
func neverRetryable(error) bool  { return false }

func TestWithBackoffSucceedsFirstAttempt(t *testing.T) {
	cfg := Config{MaxRetries: 2, RetryDelay: time.Millisecond, BackoffFactor: 2}
	calls := 0

	err := WithBackoff(context.Background(), cfg, alwaysRetryable, func(ctx context.Context, prev *Attempt) error {
		calls++
		if prev != nil {
			t.Fatal("expected nil prev on first attempt")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithBackoff() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithBackoffRetriesThenSucceeds(t *testing.T) {
	cfg := Config{MaxRetries: 2, RetryDelay: time.Millisecond, BackoffFactor: 2}
	calls := 0
	boom := errors.New("boom")

	err := WithBackoff(context.Background(), cfg, alwaysRetryable, func(ctx context.Context, prev *Attempt) error {
		calls++
		if calls == 1 {
			return boom
		}
		if prev == nil || prev.Err != boom {
			t.Fatalf("expected prev to carry the first attempt's error, got %+v", prev)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithBackoff() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWithBackoffStopsOnNonRetryableError(t *testing.T) {
	cfg := Config{MaxRetries: 3, RetryDelay: time.Millisecond, BackoffFactor: 2}
	calls := 0
	boom := errors.New("fatal")

	err := WithBackoff(context.Background(), cfg, neverRetryable, func(ctx context.Context, prev *Attempt) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (should not retry)", calls)
	}
}

func TestWithBackoffExhaustsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 2, RetryDelay: time.Millisecond, BackoffFactor: 2}
	calls := 0
	boom := errors.New("always fails")

	err := WithBackoff(context.Background(), cfg, alwaysRetryable, func(ctx context.Context, prev *Attempt) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != cfg.MaxRetries+1 {
		t.Fatalf("calls = %d, want %d", calls, cfg.MaxRetries+1)
	}
}

func TestWithBackoffRespectsContextCancellation(t *testing.T) {
	cfg := Config{MaxRetries: 5, RetryDelay: 50 * time.Millisecond, BackoffFactor: 2}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	boom := errors.New("retry me")

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := WithBackoff(ctx, cfg, alwaysRetryable, func(ctx context.Context, prev *Attempt) error {
		calls++
		return boom
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (cancelled during first backoff sleep)", calls)
	}
}

func TestBackoffDelayGeometricGrowth(t *testing.T) {
	cfg := Config{RetryDelay: 100 * time.Millisecond, BackoffFactor: 2}

	if got, want := cfg.BackoffDelay(0), 100*time.Millisecond; got != want {
		t.Fatalf("BackoffDelay(0) = %v, want %v", got, want)
	}
	if got, want := cfg.BackoffDelay(1), 200*time.Millisecond; got != want {
		t.Fatalf("BackoffDelay(1) = %v, want %v", got, want)
	}
	if got, want := cfg.BackoffDelay(2), 400*time.Millisecond; got != want {
		t.Fatalf("BackoffDelay(2) = %v, want %v", got, want)
	}
}
