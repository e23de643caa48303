package ratelimit

import (
	"fmt"
	"math"
)

// Denial describes why an operation was refused.
// RetryAfter is nil for a permanent per-OTP lock; Limit is nil for account locks.
type Denial struct {
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after"`
	Limit      *int   `json:"limit"`
	Window     string `json:"window"`
}

// Decision is the result of a pre-operation check.
type Decision struct {
	Denied *Denial
}

func (d Decision) Allowed() bool { return d.Denied == nil }

var allow = Decision{}

func deny(msg string, retryAfter, limit *int, window string) Decision {
	return Decision{Denied: &Denial{Message: msg, RetryAfter: retryAfter, Limit: limit, Window: window}}
}

func intPtr(n int) *int { return &n }

// ceilSeconds rounds a positive remaining duration up so a denial never reports 0.
func ceilSeconds(secs float64) int {
	return int(math.Ceil(secs))
}

// FormatRetryAfter renders seconds as "N seconds", "N minute(s)" or "N hour(s)".
// It returns nil for a nil or zero value.
func FormatRetryAfter(secs *int) *string {
	if secs == nil || *secs == 0 {
		return nil
	}
	s := *secs
	var out string
	switch {
	case s < 60:
		out = fmt.Sprintf("%d seconds", s)
	case s < 3600:
		out = plural(s/60, "minute")
	default:
		out = plural(s/3600, "hour")
	}
	return &out
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
