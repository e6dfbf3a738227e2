package resilience

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// BucketStats is a snapshot of one bounded-concurrency bucket.
type BucketStats struct {
	InUse         int64
	Capacity      int64
	TotalRequests int64
}

// bucket wraps a weighted semaphore with the bookkeeping needed to report
// BucketStats without disturbing the semaphore's own accounting.
type bucket struct {
	sem           *semaphore.Weighted
	capacity      int64
	inUse         int64
	totalRequests int64
}

func newBucket(capacity int64) *bucket {
	return &bucket{sem: semaphore.NewWeighted(capacity), capacity: capacity}
}

func (b *bucket) acquire(ctx context.Context) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	atomic.AddInt64(&b.inUse, 1)
	atomic.AddInt64(&b.totalRequests, 1)
	return nil
}

func (b *bucket) release() {
	atomic.AddInt64(&b.inUse, -1)
	b.sem.Release(1)
}

func (b *bucket) stats() BucketStats {
	return BucketStats{
		InUse:         atomic.LoadInt64(&b.inUse),
		Capacity:      b.capacity,
		TotalRequests: atomic.LoadInt64(&b.totalRequests),
	}
}

// RateLimiter bounds concurrent access to the LLM and the database
// independently, using two weighted semaphores so a burst of query traffic
// cannot starve LLM generation slots or vice versa.
type RateLimiter struct {
	llm     *bucket
	queries *bucket
}

// NewRateLimiter builds a limiter with the given per-bucket capacities.
func NewRateLimiter(llmCapacity, queryCapacity int64) *RateLimiter {
	return &RateLimiter{
		llm:     newBucket(llmCapacity),
		queries: newBucket(queryCapacity),
	}
}

// AcquireLLM blocks until an LLM slot is available or ctx is done.
func (r *RateLimiter) AcquireLLM(ctx context.Context) error {
	return r.llm.acquire(ctx)
}

// ReleaseLLM returns a previously acquired LLM slot.
func (r *RateLimiter) ReleaseLLM() {
	r.llm.release()
}

// AcquireQuery blocks until a database query slot is available or ctx is
// done.
func (r *RateLimiter) AcquireQuery(ctx context.Context) error {
	return r.queries.acquire(ctx)
}

// ReleaseQuery returns a previously acquired database query slot.
func (r *RateLimiter) ReleaseQuery() {
	r.queries.release()
}

// Stats is the combined stats snapshot for both buckets.
type Stats struct {
	LLM     BucketStats
	Queries BucketStats
}

// GetAllStats returns a snapshot of both buckets. Safe to call concurrently
// with acquisitions; the numbers may be stale by the time the caller reads
// them.
func (r *RateLimiter) GetAllStats() Stats {
	return Stats{
		LLM:     r.llm.stats(),
		Queries: r.queries.stats(),
	}
}
