package router

import (
	"testing"
	"time"
)

func TestBackoffWithJitter_NeverExceedsMax(t *testing.T) {
	t.Parallel()

	const max = 2 * time.Second
	for attempt := 0; attempt < 6; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoffWithJitter(attempt, 100*time.Millisecond, max)
			if d < 0 || d > max {
				t.Fatalf("backoffWithJitter(%d, ...) = %v, want within [0, %v]", attempt, d, max)
			}
		}
	}
}

func TestBackoffWithJitter_CapGrowsWithAttemptThenSaturates(t *testing.T) {
	t.Parallel()

	const base = 100 * time.Millisecond
	const max = 2 * time.Second
	var maxAt0, maxAt3, maxAt10 time.Duration
	for i := 0; i < 50; i++ {
		if d := backoffWithJitter(0, base, max); d > maxAt0 {
			maxAt0 = d
		}
		if d := backoffWithJitter(3, base, max); d > maxAt3 {
			maxAt3 = d
		}
		if d := backoffWithJitter(10, base, max); d > maxAt10 {
			maxAt10 = d
		}
	}
	if maxAt3 <= maxAt0 {
		t.Errorf("max observed delay at attempt 3 (%v) was not greater than at attempt 0 (%v)", maxAt3, maxAt0)
	}
	if maxAt10 > max {
		t.Errorf("max observed delay at attempt 10 (%v) exceeded the cap %v; large attempts must saturate, not overflow", maxAt10, max)
	}
}
