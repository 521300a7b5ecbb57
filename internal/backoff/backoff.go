// Package backoff computes retry delays. Strategies are stateless so a single
// value can serve concurrent retry loops.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before retry attempt n (zero-based).
type Strategy interface {
	Next(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialJitter grows the delay geometrically and adds up to
// jitter*delay of uniform random noise. This is the default strategy.
type ExponentialJitter struct{}

// Next implements Strategy.
func (ExponentialJitter) Next(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30 // overflow guard
	}

	d := time.Duration(float64(initial) * pow(multiplier, attempt))
	if d < 0 || d > max {
		d = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(d) * jitter * rand.Float64())
		if d+extra > max {
			d = max
		} else {
			d += extra
		}
	}
	return d
}

// DecorrelatedJitter spreads delays uniformly between the base and an
// exponentially growing upper bound, which smooths retry storms better than
// plain exponential jitter under heavy contention.
type DecorrelatedJitter struct{}

// Next implements Strategy. The multiplier and jitter parameters are ignored;
// the strategy uses the AWS-style 3x factor.
func (DecorrelatedJitter) Next(attempt int, initial, max time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base * pow(3.0, attempt)
	maxF := float64(max)
	if upper > maxF || upper < 0 {
		upper = maxF
	}
	if upper < base {
		upper = base
	}

	d := time.Duration(base + rand.Float64()*(upper-base))
	if d < 0 || d > max {
		d = max
	}
	return d
}

func clampJitter(j float64) float64 {
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
