package otpsrv_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpinfra"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeSMS) Send(_ context.Context, mobile, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("carrier down")
	}
	f.sent = append(f.sent, mobile+":"+code)
	return nil
}

func (f *fakeSMS) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type fakeTokens struct{}

func (fakeTokens) Issue(mobile string, at time.Time) (string, time.Time, error) {
	return "token-" + mobile, at.Add(30 * time.Minute), nil
}

type env struct {
	clock   *fakeClock
	repo    *otpinfra.MemoryOTPRepository
	log     *otpinfra.MemoryAttemptLog
	store   *ratelimit.MemoryStore
	sms     *fakeSMS
	locked  []string
	limiter *ratelimit.Limiter
	life    *otpsrv.Lifecycle
	svc     *otpsrv.Service
}

var meta = otpsrv.RequestMeta{IP: "10.0.0.1", UserAgent: "test-agent"}

const mobile = "9876543210"

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		clock: &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		sms:   &fakeSMS{},
	}
	e.repo = otpinfra.NewMemoryOTPRepository(e.clock.Now)
	e.log = otpinfra.NewMemoryAttemptLog(e.clock.Now)
	e.store = ratelimit.NewMemoryStore(e.clock.Now)
	e.limiter = ratelimit.New(e.store, e.log, ratelimit.DefaultConfig(),
		ratelimit.WithClock(e.clock.Now),
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		ratelimit.WithLockHook(func(_ context.Context, id string) { e.locked = append(e.locked, id) }),
	)
	e.life = otpsrv.NewLifecycle(e.repo, 5*time.Minute, e.clock.Now)
	e.svc = otpsrv.NewService(e.life, e.limiter, e.sms,
		otpsrv.WithTokenIssuer(fakeTokens{}),
		otpsrv.WithServiceClock(e.clock.Now),
	)
	return e
}

func asErrx(t *testing.T, err error) *errx.Error {
	t.Helper()
	e, ok := errx.As(err)
	if !ok {
		t.Fatalf("expected *errx.Error, got %T: %v", err, err)
	}
	return e
}
