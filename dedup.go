package skyodyssey

import (
	"context"
	"sync"
)

// inflightHandle is a shared, not-yet-resolved fetch result. The owner fills
// outcome and closes done; waiters block on done.
type inflightHandle struct {
	outcome FetchOutcome
	done    chan struct{}
}

// InflightTable coalesces concurrent identical fetches: for overlapping
// callers of the same key, at most one underlying fetch runs and every caller
// receives the identical outcome. A handle is removed the moment it resolves,
// so a later independent fetch for the same key is never coalesced with a
// stale one.
type InflightTable struct {
	mu      sync.Mutex
	handles map[string]*inflightHandle
}

// NewInflightTable returns an empty in-flight fetch table.
func NewInflightTable() *InflightTable {
	return &InflightTable{handles: make(map[string]*inflightHandle)}
}

// Do runs fn for key, guaranteeing at most one concurrent execution per key.
// The first caller installs a handle and runs fn; callers arriving while it
// is in flight attach to the handle and receive the owner's outcome. The
// returned bool reports whether this caller was coalesced onto an existing
// fetch. A waiter whose context is cancelled detaches with a failed outcome;
// the owner's fetch is unaffected.
func (t *InflightTable) Do(ctx context.Context, key string, fn func() FetchOutcome) (FetchOutcome, bool) {
	t.mu.Lock()
	if h, exists := t.handles[key]; exists {
		t.mu.Unlock()
		select {
		case <-h.done:
			return h.outcome, true
		case <-ctx.Done():
			return FetchOutcome{Status: OutcomeFailed, Err: ctx.Err()}, true
		}
	}

	h := &inflightHandle{done: make(chan struct{})}
	t.handles[key] = h
	t.mu.Unlock()

	outcome := fn()

	t.mu.Lock()
	h.outcome = outcome
	if t.handles[key] == h {
		delete(t.handles, key)
	}
	t.mu.Unlock()
	close(h.done)

	return outcome, false
}

// Inflight returns the number of keys currently being fetched.
func (t *InflightTable) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
