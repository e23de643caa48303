package ratelimit

import "time"

// ProgressiveDelay is the penalty applied after the count-th failed verification.
func ProgressiveDelay(count int64) time.Duration {
	switch {
	case count <= 1:
		return 0
	case count <= 3:
		return 2 * time.Second
	default:
		return 5 * time.Second
	}
}
