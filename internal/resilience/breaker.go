package resilience

import (
	"sync"
	"time"
)

// CircuitState is the three-state machine guarding the LLM call path.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker trips to OPEN after a run of consecutive failures and
// fails fast until recoveryTimeout elapses, at which point it lazily moves
// to HALF_OPEN and admits trial calls until the next recorded outcome
// closes or reopens it. It is shared across concurrent requests;
// every method is safe for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold       int
	recoveryTimeout time.Duration

	state           CircuitState
	failureCount    int
	lastFailureAt   time.Time
}

// NewCircuitBreaker constructs a breaker that opens after threshold
// consecutive failures and stays open for at least recoveryTimeout.
func NewCircuitBreaker(threshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
		state:           StateClosed,
	}
}

// Allow reports whether a call may proceed. In CLOSED it always returns
// true. In OPEN it returns false until recoveryTimeout has elapsed since the
// last failure, at which point it transitions to HALF_OPEN and returns
// true. In HALF_OPEN it returns true for every caller; it does not limit
// the number of concurrent trial calls.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailureAt) >= b.recoveryTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the breaker. A success
// observed in HALF_OPEN closes the circuit; a success in CLOSED is a no-op
// beyond resetting the counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.state = StateClosed
}

// RecordFailure increments the failure count and, once it reaches the
// threshold (or the breaker was already HALF_OPEN), opens the circuit and
// resets the recovery timer.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureAt = time.Now()

	if b.state == StateHalfOpen || b.failureCount >= b.threshold {
		b.state = StateOpen
	}
}

// State returns a snapshot of the current state. Intended for tests and
// observability; do not branch production logic on it outside of Allow.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
