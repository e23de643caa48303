package errx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Abraxas-365/otpguard/pkg/errx"
)

var testRegistry = errx.NewRegistry("TEST")

var (
	codeLimited = testRegistry.Register("RATE_LIMIT_EXCEEDED", errx.TypeRateLimit, 429, "slow down")
	codeOther   = testRegistry.Register("OTHER", errx.TypeInternal, 500, "other")
)

func TestRegistry_PrefixesCodes(t *testing.T) {
	e := testRegistry.New(codeLimited)
	if e.Code != "TEST_RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected prefixed code, got %s", e.Code)
	}
	if e.HTTPStatus != 429 {
		t.Fatalf("expected 429, got %d", e.HTTPStatus)
	}
	if got := e.WireCode(testRegistry.Prefix()); got != "rate_limit_exceeded" {
		t.Fatalf("expected wire code rate_limit_exceeded, got %s", got)
	}
}

func TestHasCode_FollowsWrapChain(t *testing.T) {
	inner := testRegistry.New(codeLimited)
	wrapped := fmt.Errorf("context: %w", errx.Wrap(inner, "outer", errx.TypeRateLimit))

	if !errx.HasCode(wrapped, codeLimited) {
		t.Fatal("expected HasCode to find the registered code through wrapping")
	}
	if errx.HasCode(wrapped, codeOther) {
		t.Fatal("did not expect unrelated code to match")
	}
	if errx.HasCode(errors.New("plain"), codeLimited) {
		t.Fatal("plain errors never carry codes")
	}
}

func TestWrap_PreservesStatusAndDetails(t *testing.T) {
	base := testRegistry.New(codeLimited).WithDetail("retry_after", 30)
	w := errx.Wrap(base, "wrapped", errx.TypeRateLimit)

	if w.HTTPStatus != 429 {
		t.Fatalf("expected status preserved, got %d", w.HTTPStatus)
	}
	if w.Details["retry_after"] != 30 {
		t.Fatalf("expected details preserved, got %v", w.Details)
	}
	if errx.Wrap(nil, "nothing", errx.TypeInternal) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestStatusOf(t *testing.T) {
	if got := errx.StatusOf(errors.New("x")); got != 500 {
		t.Fatalf("expected 500 for plain errors, got %d", got)
	}
	if got := errx.StatusOf(errx.New("bad", errx.TypeValidation)); got != 400 {
		t.Fatalf("expected 400, got %d", got)
	}
	if got := errx.StatusOf(errx.New("limited", errx.TypeRateLimit)); got != 429 {
		t.Fatalf("expected 429, got %d", got)
	}
}

func TestRegister_DefaultsStatusFromType(t *testing.T) {
	code := testRegistry.Register("MISSING", errx.TypeNotFound, 0, "missing")
	if code.HTTPStatus != 404 {
		t.Fatalf("expected 404 from type, got %d", code.HTTPStatus)
	}
	if got, ok := testRegistry.Get("MISSING"); !ok || got != code {
		t.Fatalf("expected registered code to be retrievable, got %v %v", got, ok)
	}
}
