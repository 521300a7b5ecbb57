package skyodyssey

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInflightTableCoalesces(t *testing.T) {
	table := NewInflightTable()
	var fetches int32
	release := make(chan struct{})

	const callers = 10
	var wg sync.WaitGroup
	outcomes := make([]FetchOutcome, callers)
	coalesced := make([]bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], coalesced[i] = table.Do(context.Background(), "key", func() FetchOutcome {
				atomic.AddInt32(&fetches, 1)
				<-release
				return FetchOutcome{Status: OutcomeFound, Fare: &LegResult{Price: 42}}
			})
		}(i)
	}

	// Let every caller reach the table before the owner resolves.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("Expected exactly 1 underlying fetch, got %d", n)
	}
	owners := 0
	for i := range outcomes {
		if outcomes[i].Status != OutcomeFound || outcomes[i].Fare.Price != 42 {
			t.Errorf("Caller %d did not receive the shared outcome: %+v", i, outcomes[i])
		}
		if !coalesced[i] {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("Expected exactly 1 owner, got %d", owners)
	}
}

func TestInflightTableRemovesHandleOnResolution(t *testing.T) {
	table := NewInflightTable()
	count := 0

	fn := func() FetchOutcome {
		count++
		return FetchOutcome{Status: OutcomeNoFare}
	}

	table.Do(context.Background(), "key", fn)
	if table.Inflight() != 0 {
		t.Error("Handle should be removed immediately on resolution")
	}

	// A later, independent fetch for the same key runs fn again.
	table.Do(context.Background(), "key", fn)
	if count != 2 {
		t.Errorf("Expected 2 independent fetches, got %d", count)
	}
}

func TestInflightTableWaiterCancellation(t *testing.T) {
	table := NewInflightTable()
	started := make(chan struct{})
	release := make(chan struct{})

	go table.Do(context.Background(), "key", func() FetchOutcome {
		close(started)
		<-release
		return FetchOutcome{Status: OutcomeFound, Fare: &LegResult{Price: 1}}
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome, coalesced := table.Do(ctx, "key", func() FetchOutcome {
		t.Error("Cancelled waiter must not run the fetch")
		return FetchOutcome{}
	})
	if !coalesced {
		t.Error("Waiter should have been coalesced")
	}
	if outcome.Status != OutcomeFailed || outcome.Err == nil {
		t.Errorf("Cancelled waiter should fail, got %+v", outcome)
	}

	// The owner is unaffected by the waiter leaving.
	close(release)
	time.Sleep(10 * time.Millisecond)
	if table.Inflight() != 0 {
		t.Error("Owner should still resolve and remove the handle")
	}
}

func TestInflightTableDistinctKeysRunConcurrently(t *testing.T) {
	table := NewInflightTable()
	var fetches int32

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			table.Do(context.Background(), key, func() FetchOutcome {
				atomic.AddInt32(&fetches, 1)
				return FetchOutcome{Status: OutcomeNoFare}
			})
		}(key)
	}
	wg.Wait()

	if fetches != 3 {
		t.Errorf("Distinct keys must not be coalesced, got %d fetches", fetches)
	}
}
