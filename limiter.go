package skyodyssey

import (
	"context"
	"sync"
	"time"
)

// AdaptivePolicy tunes how the permit pool reacts to recent outcomes. The
// exact thresholds are policy, not protocol; the defaults are conservative.
type AdaptivePolicy struct {
	// Min and Max bound the live permit limit.
	Min int
	Max int
	// GrowAfter is how many consecutive fast successes earn one extra permit.
	GrowAfter int
	// FastLatency is the completion time under which a success counts toward
	// the growth streak.
	FastLatency time.Duration
	// FailureRateThreshold shrinks the limit when the rolling failure rate
	// passes it. A timeout shrinks immediately regardless.
	FailureRateThreshold float64
	// WindowSize is how many recent outcomes the failure rate is computed over.
	WindowSize int
}

// DefaultAdaptivePolicy bounds concurrency at [1, 4], grows after 5 fast
// successes and halves on a timeout or a 50% failure rate.
func DefaultAdaptivePolicy() AdaptivePolicy {
	return AdaptivePolicy{
		Min:                  1,
		Max:                  4,
		GrowAfter:            5,
		FastLatency:          2 * time.Second,
		FailureRateThreshold: 0.5,
		WindowSize:           10,
	}
}

func (p AdaptivePolicy) normalized() AdaptivePolicy {
	if p.Min < 1 {
		p.Min = 1
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	if p.GrowAfter < 1 {
		p.GrowAfter = 5
	}
	if p.FastLatency <= 0 {
		p.FastLatency = 2 * time.Second
	}
	if p.FailureRateThreshold <= 0 || p.FailureRateThreshold > 1 {
		p.FailureRateThreshold = 0.5
	}
	if p.WindowSize < 2 {
		p.WindowSize = 10
	}
	return p
}

// InitialConcurrency derives a safe starting permit limit from the search
// width, bounded by maxPermits.
func InitialConcurrency(limitHint, maxPermits int) int {
	if maxPermits < 1 {
		maxPermits = 1
	}
	c := limitHint/2 + 1
	if c > maxPermits {
		c = maxPermits
	}
	if c < 1 {
		c = 1
	}
	return c
}

// PermitPool bounds simultaneous outbound fetches with an adaptive limit:
// additive growth on runs of fast successes, multiplicative shrink on
// timeouts or failure-rate spikes. Every fetch must Acquire before calling
// the provider and Release in all outcomes.
type PermitPool struct {
	policy AdaptivePolicy

	mu       sync.Mutex
	limit    int
	inflight int
	streak   int
	window   []bool // rolling outcome ring, true = failure
	windowAt int
	waitCh   chan struct{}
}

// NewPermitPool creates a pool starting at the given limit, clamped into the
// policy's [Min, Max] bounds.
func NewPermitPool(initial int, policy AdaptivePolicy) *PermitPool {
	policy = policy.normalized()
	if initial < policy.Min {
		initial = policy.Min
	}
	if initial > policy.Max {
		initial = policy.Max
	}
	return &PermitPool{
		policy: policy,
		limit:  initial,
		waitCh: make(chan struct{}),
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (p *PermitPool) Acquire(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.inflight < p.limit {
			p.inflight++
			p.mu.Unlock()
			return nil
		}
		wait := p.waitCh
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Release returns a permit. It must be called exactly once per successful
// Acquire, on every path including errors and cancellation.
func (p *PermitPool) Release() {
	p.mu.Lock()
	if p.inflight > 0 {
		p.inflight--
	}
	p.notifyLocked()
	p.mu.Unlock()
}

// notifyLocked wakes all waiters; each re-checks the limit.
func (p *PermitPool) notifyLocked() {
	close(p.waitCh)
	p.waitCh = make(chan struct{})
}

// Observe feeds one fetch outcome into the adaptive limit. err nil means the
// fetch completed (a NoFare result still counts as a healthy completion).
func (p *PermitPool) Observe(latency time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	failed := err != nil
	p.recordLocked(failed)

	if failed {
		p.streak = 0
		if isTimeout(err) || p.failureRateLocked() > p.policy.FailureRateThreshold {
			p.shrinkLocked()
		}
		return
	}

	if latency <= p.policy.FastLatency {
		p.streak++
		if p.streak >= p.policy.GrowAfter {
			p.streak = 0
			p.growLocked()
		}
	} else {
		p.streak = 0
	}
}

func (p *PermitPool) recordLocked(failed bool) {
	if len(p.window) < p.policy.WindowSize {
		p.window = append(p.window, failed)
		return
	}
	p.window[p.windowAt] = failed
	p.windowAt = (p.windowAt + 1) % len(p.window)
}

func (p *PermitPool) failureRateLocked() float64 {
	if len(p.window) == 0 {
		return 0
	}
	failures := 0
	for _, f := range p.window {
		if f {
			failures++
		}
	}
	return float64(failures) / float64(len(p.window))
}

func (p *PermitPool) growLocked() {
	if p.limit < p.policy.Max {
		p.limit++
		p.notifyLocked()
	}
}

func (p *PermitPool) shrinkLocked() {
	next := p.limit / 2
	if next < p.policy.Min {
		next = p.policy.Min
	}
	p.limit = next
}

// Limit returns the current live permit limit.
func (p *PermitPool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// Inflight returns the number of permits currently held.
func (p *PermitPool) Inflight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}
