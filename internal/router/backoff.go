package router

import (
	"math/rand"
	"time"
)

// backoffWithJitter computes a full-jitter exponential backoff delay for
// retry attempt (0-indexed), capped at max.
func backoffWithJitter(attempt int, base, max time.Duration) time.Duration {
	d := base << attempt
	if d <= 0 || d > max {
		d = max
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
