package skyodyssey

import (
	"context"
	"testing"
	"time"
)

func testPolicy() AdaptivePolicy {
	return AdaptivePolicy{
		Min:                  1,
		Max:                  4,
		GrowAfter:            3,
		FastLatency:          time.Second,
		FailureRateThreshold: 0.5,
		WindowSize:           4,
	}
}

func TestPermitPoolAcquireRelease(t *testing.T) {
	pool := NewPermitPool(2, testPolicy())
	ctx := context.Background()

	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if pool.Inflight() != 2 {
		t.Errorf("Expected 2 inflight, got %d", pool.Inflight())
	}

	// Third acquire should block until a release.
	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx2); err == nil {
		t.Error("Acquire beyond the limit should block")
	}

	pool.Release()
	if err := pool.Acquire(ctx); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestPermitPoolAcquireWakesOnRelease(t *testing.T) {
	pool := NewPermitPool(1, testPolicy())
	ctx := context.Background()

	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- pool.Acquire(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	pool.Release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("Waiter should acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Waiter was never woken")
	}
}

func TestPermitPoolGrowsOnFastSuccesses(t *testing.T) {
	policy := testPolicy()
	pool := NewPermitPool(1, policy)

	for i := 0; i < policy.GrowAfter; i++ {
		pool.Observe(10*time.Millisecond, nil)
	}
	if pool.Limit() != 2 {
		t.Errorf("Expected limit 2 after %d fast successes, got %d", policy.GrowAfter, pool.Limit())
	}

	// Growth is additive and bounded by Max.
	for i := 0; i < policy.GrowAfter*10; i++ {
		pool.Observe(10*time.Millisecond, nil)
	}
	if pool.Limit() != policy.Max {
		t.Errorf("Expected limit capped at %d, got %d", policy.Max, pool.Limit())
	}
}

func TestPermitPoolSlowSuccessResetsStreak(t *testing.T) {
	policy := testPolicy()
	pool := NewPermitPool(1, policy)

	pool.Observe(10*time.Millisecond, nil)
	pool.Observe(10*time.Millisecond, nil)
	pool.Observe(5*time.Second, nil) // slow completion breaks the streak
	pool.Observe(10*time.Millisecond, nil)

	if pool.Limit() != 1 {
		t.Errorf("Streak should reset on slow success, limit = %d", pool.Limit())
	}
}

func TestPermitPoolShrinksOnTimeout(t *testing.T) {
	pool := NewPermitPool(4, testPolicy())

	pool.Observe(time.Second, NewTimeoutError(LegQuery{}, context.DeadlineExceeded))
	if pool.Limit() != 2 {
		t.Errorf("Expected multiplicative shrink 4 -> 2, got %d", pool.Limit())
	}
	pool.Observe(time.Second, NewTimeoutError(LegQuery{}, context.DeadlineExceeded))
	pool.Observe(time.Second, NewTimeoutError(LegQuery{}, context.DeadlineExceeded))
	if pool.Limit() != 1 {
		t.Errorf("Limit must never drop below Min, got %d", pool.Limit())
	}
}

func TestPermitPoolShrinksOnFailureRateSpike(t *testing.T) {
	pool := NewPermitPool(4, testPolicy())

	// Window of 4: three failures push the rate past 0.5.
	pool.Observe(time.Millisecond, nil)
	pool.Observe(time.Millisecond, NewTransientError(LegQuery{}, nil))
	pool.Observe(time.Millisecond, NewTransientError(LegQuery{}, nil))
	pool.Observe(time.Millisecond, NewTransientError(LegQuery{}, nil))

	if pool.Limit() >= 4 {
		t.Errorf("Expected shrink on failure-rate spike, limit = %d", pool.Limit())
	}
}

func TestPermitPoolNoLeakOnCancel(t *testing.T) {
	pool := NewPermitPool(1, testPolicy())
	ctx := context.Background()

	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	if err := pool.Acquire(ctx2); err == nil {
		t.Fatal("Cancelled Acquire should fail")
	}

	pool.Release()
	if pool.Inflight() != 0 {
		t.Errorf("Cancelled waiter must not hold a permit, inflight = %d", pool.Inflight())
	}
	if err := pool.Acquire(ctx); err != nil {
		t.Errorf("Pool should be usable after a cancelled waiter: %v", err)
	}
}

func TestInitialConcurrency(t *testing.T) {
	cases := []struct {
		hint, max, want int
	}{
		{0, 3, 1},
		{2, 3, 2},
		{4, 3, 3},
		{10, 4, 4},
		{1, 1, 1},
	}
	for _, c := range cases {
		if got := InitialConcurrency(c.hint, c.max); got != c.want {
			t.Errorf("InitialConcurrency(%d, %d) = %d, want %d", c.hint, c.max, got, c.want)
		}
	}
}
