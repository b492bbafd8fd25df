package pipeline

import (
	"math"
	"time"
)

// RetryPolicy bounds the poll self-loop.
type RetryPolicy struct {
	MaxAttempts       int
	BaseInterval      time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy polls up to 100 times starting 5s apart, doubling each time.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       100,
		BaseInterval:      5 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Delay returns the wait before the poll that follows the attempt-th one:
// BaseInterval × BackoffMultiplier^(attempt−1). The delay is uncapped and
// saturates at the largest time.Duration once it no longer fits.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseInterval) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if math.IsNaN(d) || d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}
