package backoff

import (
	"testing"
	"time"
)

func TestExponentialJitterGrowth(t *testing.T) {
	s := ExponentialJitter{}
	initial := 100 * time.Millisecond
	max := 10 * time.Second

	// No jitter: pure geometric growth.
	prev := time.Duration(0)
	for attempt := 0; attempt < 5; attempt++ {
		d := s.Next(attempt, initial, max, 2.0, 0)
		want := initial * time.Duration(1<<attempt)
		if d != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, d)
		}
		if d <= prev {
			t.Errorf("attempt %d: delay should grow, got %v after %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestExponentialJitterCap(t *testing.T) {
	s := ExponentialJitter{}
	max := time.Second

	for attempt := 0; attempt < 50; attempt++ {
		d := s.Next(attempt, 100*time.Millisecond, max, 2.0, 0.5)
		if d < 0 || d > max {
			t.Fatalf("attempt %d: delay %v out of [0, %v]", attempt, d, max)
		}
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	s := ExponentialJitter{}
	initial := 100 * time.Millisecond
	max := 10 * time.Second

	for i := 0; i < 100; i++ {
		d := s.Next(2, initial, max, 2.0, 0.2)
		base := 400 * time.Millisecond
		if d < base || d > base+base/5 {
			t.Fatalf("jittered delay %v outside [%v, %v]", d, base, base+base/5)
		}
	}
}

func TestDecorrelatedJitterBounds(t *testing.T) {
	s := DecorrelatedJitter{}
	initial := 100 * time.Millisecond
	max := 5 * time.Second

	if d := s.Next(0, initial, max, 0, 0); d != initial {
		t.Errorf("attempt 0 should return the initial delay, got %v", d)
	}
	for attempt := 1; attempt < 20; attempt++ {
		for i := 0; i < 20; i++ {
			d := s.Next(attempt, initial, max, 0, 0)
			if d < initial || d > max {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, initial, max)
			}
		}
	}
}

func TestClampJitter(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-1, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{2, 1},
	}
	for _, c := range cases {
		if got := clampJitter(c.in); got != c.want {
			t.Errorf("clampJitter(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
