package webhook

import (
	"math"
	"time"
)

// Delay returns the wait before the attempt following the given failed attempt
// (1-based). Linear grows as base*attempt, exponential as base*2^(attempt-1);
// both are capped at MaxDelay. A zero MaxDelay leaves the delay uncapped.
func (r RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	limit := r.MaxDelay
	if limit <= 0 {
		limit = math.MaxInt64
	}
	// compare against the limit before multiplying so large values cannot wrap
	switch r.Backoff {
	case BackoffLinear:
		if r.BaseDelay > limit/time.Duration(attempt) {
			return limit
		}
		return r.BaseDelay * time.Duration(attempt)
	default:
		shift := attempt - 1
		if shift >= 63 || r.BaseDelay > limit>>shift {
			return limit
		}
		return r.BaseDelay << shift
	}
}
