package resilience

import (
	"context"
	"time"
)

// Attempt carries what the retry loop needs to know between attempts:
// whether the error is worth feeding back to the next attempt as context.
type Attempt struct {
	Index int   // 0-based attempt number
	Err   error // non-nil only when the attempt failed
}

// RetryFunc performs one attempt. prev is nil on the first attempt and
// carries the previous failed Attempt afterward, so callers can build
// feedback prompts (e.g. "previous_attempt" / "error_feedback") without the
// loop itself knowing about SQL or LLMs.
type RetryFunc func(ctx context.Context, prev *Attempt) error

// IsRetryable classifies an error as worth retrying. The orchestrator
// passes apperr's IsRetryable here; it is a parameter rather than a direct
// dependency so this package stays free of domain-specific error types.
type IsRetryable func(error) bool

// WithBackoff runs fn up to cfg.MaxRetries+1 times, sleeping
// cfg.BackoffDelay(k) between attempt k and k+1, stopping as soon as fn
// succeeds, returns a non-retryable error, or ctx is done. It returns the
// error from the last attempt made, or ctx.Err() when ctx is done during a
// backoff sleep.
func WithBackoff(ctx context.Context, cfg Config, retryable IsRetryable, fn RetryFunc) error {
	var prev *Attempt

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx, prev)
		if err == nil {
			return nil
		}

		prev = &Attempt{Index: attempt, Err: err}

		if !retryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.BackoffDelay(attempt)):
		}
	}

	// Unreachable: MaxRetries >= 0 guarantees the loop above returns.
	return prev.Err
}
