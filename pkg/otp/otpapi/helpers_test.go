package otpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpapi"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpinfra"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
	"github.com/Abraxas-365/otpguard/pkg/otp/otptoken"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
	"github.com/gofiber/fiber/v2"
)

const (
	mobile     = "9876543210"
	adminToken = "s3cret-admin"
)

func init() {
	logx.SetOutput(io.Discard)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type sms struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func (s *sms) Send(_ context.Context, mobile, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("carrier down")
	}
	s.codes[mobile] = code
	return nil
}

func (s *sms) code(mobile string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[mobile]
}

type server struct {
	app     *fiber.App
	clock   *clock
	sms     *sms
	log     *otpinfra.MemoryAttemptLog
	limiter *ratelimit.Limiter
}

type serverOpts struct {
	debug      bool
	adminToken string
}

func newServer(t *testing.T, o serverOpts) *server {
	t.Helper()
	s := &server{
		clock: &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		sms:   &sms{codes: map[string]string{}},
	}
	repo := otpinfra.NewMemoryOTPRepository(s.clock.Now)
	s.log = otpinfra.NewMemoryAttemptLog(s.clock.Now)
	store := ratelimit.NewMemoryStore(s.clock.Now)
	s.limiter = ratelimit.New(store, s.log, ratelimit.DefaultConfig(),
		ratelimit.WithClock(s.clock.Now),
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	tokens := otptoken.New("test-secret", 30*time.Minute, "").WithClock(s.clock.Now)

	svc := otpsrv.NewService(otpsrv.NewLifecycle(repo, 5*time.Minute, s.clock.Now), s.limiter, s.sms,
		otpsrv.WithTokenIssuer(tokens),
		otpsrv.WithServiceClock(s.clock.Now),
	)

	s.app = fiber.New()
	api := s.app.Group("/api")
	otpapi.NewHandlers(svc, otpapi.WithDebug(o.debug), otpapi.WithTokenParser(tokens)).RegisterRoutes(api)
	otpapi.NewAdminHandlers(s.limiter, s.log, nil, o.adminToken).RegisterRoutes(api)
	return s
}

type call struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
}

func (s *server) do(t *testing.T, c call) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(c.method, c.path, r)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	if len(raw) > 0 && json.Valid(raw) {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *server) post(t *testing.T, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	return s.do(t, call{method: "POST", path: path, body: body})
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	return d
}

func wrongCode(real string) string {
	if real == "000000" {
		return "111111"
	}
	return "000000"
}
