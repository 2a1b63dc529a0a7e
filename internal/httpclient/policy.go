package httpclient

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls the exponential backoff applied between attempts.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.2,
	}
}

func NormalizeRetryPolicy(p RetryPolicy) RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = defaults.MaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaults.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaults.MaxDelay
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = defaults.BackoffFactor
	}
	if p.JitterFactor < 0 || p.JitterFactor >= 1 {
		p.JitterFactor = defaults.JitterFactor
	}
	return p
}

// Delay returns the backoff before retrying the given zero-based attempt,
// capped at MaxDelay and spread by +/- JitterFactor. A preceding 429 at
// least doubles the result.
func (p RetryPolicy) Delay(attempt int, throttled bool) time.Duration {
	base := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	if capped := float64(p.MaxDelay); base > capped {
		base = capped
	}
	if p.JitterFactor > 0 {
		spread := 1 + p.JitterFactor*(2*rand.Float64()-1)
		base *= spread
	}
	if throttled {
		base *= 2
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
