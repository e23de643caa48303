package ratelimitredis_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit/ratelimitredis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T, opts ...ratelimitredis.Option) (*ratelimitredis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return ratelimitredis.New(rdb, opts...), mr
}

func TestStore_IncrSetsTTLOnCreateOnly(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	k := ratelimit.GenerationKey("9876543210")

	if n, err := s.Incr(ctx, k, 15*time.Minute); err != nil || n != 1 {
		t.Fatalf("first incr: %d %v", n, err)
	}
	mr.FastForward(5 * time.Minute)
	if n, _ := s.Incr(ctx, k, 15*time.Minute); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}

	if got := mr.TTL("otp:gen:9876543210"); got != 10*time.Minute {
		t.Fatalf("ttl should keep counting from creation, got %s", got)
	}

	mr.FastForward(10 * time.Minute)
	if _, ok, _ := s.Get(ctx, k); ok {
		t.Fatal("counter should have expired")
	}
}

func TestStore_IncrWithoutTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	k := ratelimit.VerificationKey("otp-1")

	_, _ = s.Incr(ctx, k, 0)
	if mr.TTL("otp:verify:otp-1") != 0 {
		t.Fatal("verification counter must not expire")
	}
	if _, ok, _ := s.TTL(ctx, k); ok {
		t.Fatal("TTL should report absent for keys without expiry")
	}
}

func TestStore_SetGetDeleteTTL(t *testing.T) {
	s, _ := newStore(t, ratelimitredis.WithPrefix("test:"))
	ctx := context.Background()
	k := ratelimit.LockKey("9876543210")

	if err := s.Set(ctx, k, "1", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, k)
	if err != nil || !ok || v != "1" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
	ttl, ok, _ := s.TTL(ctx, k)
	if !ok || ttl != time.Hour {
		t.Fatalf("ttl: %s %v", ttl, ok)
	}

	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, k); ok {
		t.Fatal("expected deleted")
	}
	if _, ok, _ := s.TTL(ctx, k); ok {
		t.Fatal("missing key has no ttl")
	}
}

func TestStore_ErrorsAreWrapped(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	s := ratelimitredis.New(rdb)

	_, err := s.Incr(context.Background(), ratelimit.IPKey("1.2.3.4"), time.Minute)
	if !errx.HasCode(err, ratelimitredis.ErrIncr) {
		t.Fatalf("expected wrapped incr error, got %v", err)
	}
}

func TestStore_DrivesLimiter(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	l := ratelimit.New(s, nil, ratelimit.DefaultConfig(),
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }))

	for i := 0; i < 3; i++ {
		l.RecordGeneration(ctx, "9876543210", "10.0.0.1", true)
	}
	d, err := l.CheckGeneration(ctx, "9876543210", "10.0.0.1")
	if err != nil || d.Allowed() {
		t.Fatalf("expected denial, got %+v %v", d, err)
	}
	if !mr.Exists("otp:gen:ts:9876543210:0") || !mr.Exists("otp:gen:ts:9876543210:2") {
		t.Fatalf("expected timestamp slots 0..2, keys=%v", mr.Keys())
	}
}
