package scheduler

import (
	"math/rand"
	"time"
)

// Delay computes the backoff delay for a retry attempt:
// min(max, base * 2^attempt) scaled by a jitter factor in [0.5, 1.0).
func Delay(attempt int, base, max time.Duration, jitter float64) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	return time.Duration(float64(d) * jitter)
}

func defaultJitter() float64 {
	return 0.5 + rand.Float64()*0.5
}
