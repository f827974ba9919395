package serp

import (
	"math/rand"
	"net/http"
	"time"
)

const (
	baseDelay      = 500 * time.Millisecond
	rateLimitFloor = 2 * time.Second
	jitterFraction = 0.3
)

// Delay returns the pre-jitter backoff before the next attempt.
// attempt counts completed attempts (1-based); the delay doubles per
// attempt. Rate-limit responses get a higher floor than generic
// failures: a 429 means the remote wants a real cool-down.
func Delay(attempt int, httpStatus int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseDelay << (attempt - 1)
	if httpStatus == http.StatusTooManyRequests && d < rateLimitFloor {
		d = rateLimitFloor
	}
	return d
}

// Jitter spreads a delay by ±30% so concurrently retrying keywords do
// not synchronize against the remote.
func Jitter(d time.Duration, rng *rand.Rand) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := 1 - jitterFraction + 2*jitterFraction*rng.Float64()
	return time.Duration(float64(d) * spread)
}
