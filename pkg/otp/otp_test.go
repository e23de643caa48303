package otp_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func TestNew_SetsExpiryAndCode(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o, err := otp.New("9876543210", now, 5*time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if o.ExpiresAt.Sub(o.CreatedAt) != 5*time.Minute {
		t.Fatalf("expected 5m lifetime, got %s", o.ExpiresAt.Sub(o.CreatedAt))
	}
	if !sixDigits.MatchString(o.Code) {
		t.Fatalf("expected 6 digit code, got %q", o.Code)
	}
	if o.ID.IsEmpty() || o.IsUsed {
		t.Fatalf("unexpected fresh otp: %+v", o)
	}
}

func TestGenerateCode_AlwaysSixDigits(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := otp.GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !sixDigits.MatchString(code) {
			t.Fatalf("bad code %q", code)
		}
	}
}

func TestVerify_Precedence(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := otp.OTP{MobileNumber: "9876543210", Code: "482913", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	usedAndExpired := base
	usedAndExpired.IsUsed = true
	if r := usedAndExpired.Verify("482913", now.Add(time.Hour)); r.Valid || r.Reason != otp.ReasonAlreadyUsed {
		t.Fatalf("used must win over expired: %+v", r)
	}

	expired := base
	if r := expired.Verify("000000", now.Add(6*time.Minute)); r.Reason != otp.ReasonExpired {
		t.Fatalf("expired must win over mismatch: %+v", r)
	}

	if r := base.Verify("000000", now); r.Reason != otp.ReasonInvalidCode {
		t.Fatalf("expected mismatch: %+v", r)
	}
	if r := base.Verify("482913", now); !r.Valid {
		t.Fatalf("expected valid: %+v", r)
	}
}

func TestVerify_ExpiredCorrectCode(t *testing.T) {
	now := time.Now()
	o := otp.OTP{Code: "482913", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	r := o.Verify("482913", o.ExpiresAt.Add(time.Second))
	if r.Valid || r.Reason != "OTP expired" {
		t.Fatalf("expected {false, OTP expired}, got %+v", r)
	}
	if r.Message() != "OTP has expired. Please request a new one" {
		t.Fatalf("unexpected message %q", r.Message())
	}
}

func TestMarkUsed_Monotonic(t *testing.T) {
	o := otp.OTP{}
	if !o.MarkUsed() {
		t.Fatal("first mark should change state")
	}
	if o.MarkUsed() || !o.IsUsed {
		t.Fatal("second mark must be a no-op")
	}
}

func TestIsValid(t *testing.T) {
	now := time.Now()
	o := otp.OTP{ExpiresAt: now.Add(time.Minute)}
	if !o.IsValid(now) {
		t.Fatal("expected valid")
	}
	if o.IsValid(o.ExpiresAt) {
		t.Fatal("valid requires now strictly before expiry")
	}
	if o.ExpiresIn(now.Add(2*time.Minute)) != 0 {
		t.Fatal("expired otp has no remaining lifetime")
	}
}

func TestSuspiciousActivity_Thresholds(t *testing.T) {
	s := otp.NewSuspiciousActivity(3, 5, 10)
	if s.Flagged() {
		t.Fatalf("thresholds are strict greater-than: %+v", s)
	}
	s = otp.NewSuspiciousActivity(4, 6, 11)
	if !s.MultipleIPs || !s.HighFailureRate || !s.RapidAttempts {
		t.Fatalf("expected all indicators: %+v", s)
	}
}

func TestValidation(t *testing.T) {
	errs := otp.FieldErrors{}
	if got := otp.NormalizeMobile("  9876543210 ", errs); got != "9876543210" || errs.Err() != nil {
		t.Fatalf("expected trimmed valid number, got %q %v", got, errs)
	}

	errs = otp.FieldErrors{}
	otp.NormalizeMobile("98765abc10", errs)
	otp.NormalizeCode("12345", errs)
	e := errs.Err()
	if e == nil || !errx.HasCode(e, otp.CodeValidation) {
		t.Fatalf("expected validation error, got %v", e)
	}
	if len(errs["mobile_number"]) != 1 || len(errs["otp_code"]) != 1 {
		t.Fatalf("unexpected field errors: %v", errs)
	}

	errs = otp.FieldErrors{}
	otp.NormalizeResendMobile("5876543210", errs)
	if errs["mobile_number"][0] != "Mobile number must start with 6, 7, 8, or 9" {
		t.Fatalf("unexpected resend validation: %v", errs)
	}
}

func TestWireCode(t *testing.T) {
	if got := otp.WireCode(otp.ErrNoActiveOTP()); got != "no_active_otp" {
		t.Fatalf("unexpected wire code %q", got)
	}
}
