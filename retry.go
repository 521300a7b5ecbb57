package skyodyssey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maru-775/SkyOdyssey-CLI/internal/backoff"
)

// RetryPolicy wraps a provider lookup in bounded retries with backoff and
// jitter. Only transient failures (timeouts, transient provider errors) are
// retried; exhausting the budget yields a terminal LegUnavailable outcome
// rather than a raised failure, so the surrounding search continues with the
// leg simply absent. Non-transient errors terminate immediately.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	Strategy       backoff.Strategy
}

// DefaultRetryPolicy matches the conservative defaults: 2 retries, 750ms
// base, doubling with 20% jitter, capped at 10s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 750 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
		Strategy:       backoff.ExponentialJitter{},
	}
}

func (p *RetryPolicy) strategy() backoff.Strategy {
	if p.Strategy == nil {
		return backoff.ExponentialJitter{}
	}
	return p.Strategy
}

// Execute runs lookup for q until it resolves, the retry budget runs out, or
// ctx is cancelled. The result is always a tagged outcome; Execute never
// panics or propagates provider failures as raised errors.
func (p *RetryPolicy) Execute(ctx context.Context, q LegQuery, lookup func(context.Context, LegQuery) (*LegResult, error)) FetchOutcome {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return FetchOutcome{Status: OutcomeFailed, Err: err, Attempts: attempt}
		}

		fare, err := lookup(ctx, q)
		if err == nil {
			if fare == nil || fare.Price <= 0 {
				return FetchOutcome{Status: OutcomeNoFare, Err: ErrInvalidFare, Attempts: attempt + 1}
			}
			return FetchOutcome{Status: OutcomeFound, Fare: fare, Attempts: attempt + 1}
		}
		if errors.Is(err, ErrNoFare) {
			return FetchOutcome{Status: OutcomeNoFare, Attempts: attempt + 1}
		}
		if !IsTransient(err) {
			return FetchOutcome{Status: OutcomeFailed, Err: err, Attempts: attempt + 1}
		}

		lastErr = err
		if attempt == p.MaxRetries {
			break
		}

		delay := p.strategy().Next(attempt, p.InitialBackoff, p.MaxBackoff, p.Multiplier, p.Jitter)
		select {
		case <-ctx.Done():
			return FetchOutcome{Status: OutcomeFailed, Err: ctx.Err(), Attempts: attempt + 1}
		case <-time.After(delay):
		}
	}

	return FetchOutcome{
		Status:   OutcomeUnavailable,
		Err:      fmt.Errorf("%w: %v", ErrLegUnavailable, lastErr),
		Attempts: p.MaxRetries + 1,
	}
}
