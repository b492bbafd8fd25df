package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelaySequence(t *testing.T) {
	policy := DefaultRetryPolicy()
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 80 * time.Second}
	for k, d := range want {
		assert.Equal(t, d, policy.Delay(k+1), "attempt %d", k+1)
	}
}

func TestDelayIsUncapped(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.Equal(t, 5*time.Second*(1<<20), policy.Delay(21))
	assert.Greater(t, policy.Delay(31), policy.Delay(30))
}

func TestDelaySaturates(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.Equal(t, time.Duration(math.MaxInt64), policy.Delay(99))
	assert.Equal(t, time.Duration(math.MaxInt64), policy.Delay(1000))
}

func TestDelayEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{name: "attempt below one uses the base", policy: DefaultRetryPolicy(), attempt: 0, want: 5 * time.Second},
		{name: "multiplier one is constant", policy: RetryPolicy{MaxAttempts: 3, BaseInterval: time.Second, BackoffMultiplier: 1}, attempt: 50, want: time.Second},
		{name: "zero base never waits", policy: RetryPolicy{MaxAttempts: 3, BackoffMultiplier: 2}, attempt: 10, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy.Delay(tc.attempt))
		})
	}
}
