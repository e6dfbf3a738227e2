package resilience

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAcquireReleaseLLM(t *testing.T) {
	rl := NewRateLimiter(1, 5)
	ctx := context.Background()

	if err := rl.AcquireLLM(ctx); err != nil {
		t.Fatalf("AcquireLLM() error = %v", err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- rl.AcquireLLM(ctx)
	}()

	select {
	case <-blocked:
		t.Fatal("second AcquireLLM() should have blocked while capacity is 1")
	case <-time.After(20 * time.Millisecond):
	}

	rl.ReleaseLLM()

	select {
	case err := <-blocked:
		if err != nil {
			t.Fatalf("AcquireLLM() after release error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AcquireLLM() did not unblock after release")
	}
	rl.ReleaseLLM()
}

func TestRateLimiterAcquireRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	ctx := context.Background()

	if err := rl.AcquireQuery(ctx); err != nil {
		t.Fatalf("AcquireQuery() error = %v", err)
	}
	defer rl.ReleaseQuery()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	if err := rl.AcquireQuery(cctx); err == nil {
		t.Fatal("expected AcquireQuery() to fail once context is done")
	}
}

func TestRateLimiterStats(t *testing.T) {
	rl := NewRateLimiter(2, 3)
	ctx := context.Background()

	if err := rl.AcquireLLM(ctx); err != nil {
		t.Fatal(err)
	}
	if err := rl.AcquireQuery(ctx); err != nil {
		t.Fatal(err)
	}

	stats := rl.GetAllStats()
	if stats.LLM.InUse != 1 || stats.LLM.Capacity != 2 || stats.LLM.TotalRequests != 1 {
		t.Fatalf("LLM stats = %+v", stats.LLM)
	}
	if stats.Queries.InUse != 1 || stats.Queries.Capacity != 3 || stats.Queries.TotalRequests != 1 {
		t.Fatalf("Queries stats = %+v", stats.Queries)
	}

	rl.ReleaseLLM()
	rl.ReleaseQuery()

	stats = rl.GetAllStats()
	if stats.LLM.InUse != 0 || stats.Queries.InUse != 0 {
		t.Fatalf("expected InUse to drop to 0 after release, got %+v", stats)
	}
	if stats.LLM.TotalRequests != 1 || stats.Queries.TotalRequests != 1 {
		t.Fatalf("TotalRequests should persist across release, got %+v", stats)
	}
}
