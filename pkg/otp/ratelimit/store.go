package ratelimit

import (
	"context"
	"strconv"
	"time"
)

// Store is the Ephemeral Counter Store. A ttl of 0 means no expiry.
// Missing or expired entries are reported as absent, never as errors.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
	// TTL returns the remaining lifetime; false when the key is absent or has no expiry.
	TTL(ctx context.Context, key Key) (time.Duration, bool, error)
	// Incr atomically adds one and returns the new value. ttl applies only when
	// the increment creates the key.
	Incr(ctx context.Context, key Key, ttl time.Duration) (int64, error)
}

func getInt(ctx context.Context, s Store, key Key) (int64, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// A garbled counter reads as zero.
		return 0, nil
	}
	return n, nil
}

// Timestamps are stored as Unix nanoseconds.
func getTime(ctx context.Context, s Store, key Key) (time.Time, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ns, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(0, ns), true, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
