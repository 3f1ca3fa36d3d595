package price

import (
	"math/rand"
	"time"
)

// RetryPolicy implements the exponential-backoff-with-jitter convention
// used at the aggregator's adapter boundary. Retries happen here, not
// inside individual adapters, so every adapter gets consistent backoff
// behavior without reimplementing it.
type RetryPolicy struct {
	BaseDelay  time.Duration
	Factor     float64
	JitterFrac float64
	MaxAttempts int
}

// DefaultRetryPolicy uses a 100ms base delay, factor 2, and ±25% jitter.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryPolicy{
		BaseDelay:   100 * time.Millisecond,
		Factor:      2,
		JitterFrac:  0.25,
		MaxAttempts: maxAttempts,
	}
}

// Delay returns the backoff delay before the given attempt (0-indexed),
// jittered by +/- JitterFrac.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		base *= p.Factor
	}
	if p.JitterFrac > 0 {
		jitter := base * p.JitterFrac
		base += (rand.Float64()*2 - 1) * jitter
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}
