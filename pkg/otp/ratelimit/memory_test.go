package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
)

func TestMemoryStore_IncrKeepsTTLFromCreate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := ratelimit.NewMemoryStore(clock.Now)
	ctx := context.Background()
	k := ratelimit.GenerationKey("9876543210")

	if n, _ := s.Incr(ctx, k, time.Minute); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	clock.Advance(40 * time.Second)
	if n, _ := s.Incr(ctx, k, time.Minute); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}

	ttl, ok, _ := s.TTL(ctx, k)
	if !ok || ttl != 20*time.Second {
		t.Fatalf("ttl must not be refreshed by later increments: %s %v", ttl, ok)
	}

	clock.Advance(21 * time.Second)
	if _, ok, _ := s.Get(ctx, k); ok {
		t.Fatal("expected key to expire")
	}
	if n, _ := s.Incr(ctx, k, time.Minute); n != 1 {
		t.Fatalf("expected restart at 1, got %d", n)
	}
}

func TestMemoryStore_NoExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := ratelimit.NewMemoryStore(clock.Now)
	ctx := context.Background()
	k := ratelimit.VerificationKey("otp-1")

	_, _ = s.Incr(ctx, k, 0)
	clock.Advance(24 * time.Hour)

	if v, ok, _ := s.Get(ctx, k); !ok || v != "1" {
		t.Fatalf("expected persistent counter, got %q %v", v, ok)
	}
	if _, ok, _ := s.TTL(ctx, k); ok {
		t.Fatal("ttl should be absent for keys without expiry")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 live entry, got %d", s.Len())
	}
}

func TestKeyStrings(t *testing.T) {
	cases := map[ratelimit.Key]string{
		ratelimit.GenerationKey("9876543210"):             "otp:gen:9876543210",
		ratelimit.GenerationTimestampKey("9876543210", 0): "otp:gen:ts:9876543210:0",
		ratelimit.VerificationKey("abc"):                  "otp:verify:abc",
		ratelimit.ResendKey("9876543210"):                 "otp:resend:9876543210",
		ratelimit.ResendTimestampKey("9876543210", 2):     "otp:resend:ts:9876543210:2",
		ratelimit.ResendLastKey("9876543210"):             "otp:resend:last:9876543210",
		ratelimit.IPKey("10.0.0.1"):                       "otp:ip:10.0.0.1",
		ratelimit.LockKey("9876543210"):                   "otp:lock:9876543210",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("%v: want %s got %s", k, want, got)
		}
	}
}

func TestProgressiveDelay(t *testing.T) {
	cases := map[int64]time.Duration{0: 0, 1: 0, 2: 2 * time.Second, 3: 2 * time.Second, 4: 5 * time.Second, 9: 5 * time.Second}
	for n, want := range cases {
		if got := ratelimit.ProgressiveDelay(n); got != want {
			t.Fatalf("count %d: want %s got %s", n, want, got)
		}
	}
}
