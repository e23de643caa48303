package config_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	rl := cfg.RateLimit
	if rl.GenerationLimit != 3 || rl.GenerationWindow != 15*time.Minute {
		t.Fatalf("unexpected generation defaults: %+v", rl)
	}
	if rl.VerificationLimit != 5 || rl.ResendLimit != 3 || rl.ResendCooldown != 30*time.Second {
		t.Fatalf("unexpected verify/resend defaults: %+v", rl)
	}
	if rl.IPGlobalLimit != 100 || rl.AccountLockDuration != time.Hour || !rl.EnableProgressiveDelay {
		t.Fatalf("unexpected ip/lock defaults: %+v", rl)
	}
	if cfg.OTP.Expiry != 5*time.Minute {
		t.Fatalf("expected 5m expiry, got %s", cfg.OTP.Expiry)
	}
	if cfg.Cleanup.OTPDays != 7 || cfg.Cleanup.AttemptDays != 30 {
		t.Fatalf("unexpected cleanup defaults: %+v", cfg.Cleanup)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OTP_GENERATION_LIMIT", "7")
	t.Setenv("OTP_GENERATION_WINDOW", "600")
	t.Setenv("OTP_RESEND_COOLDOWN", "45s")
	t.Setenv("OTP_PROGRESSIVE_DELAYS", "false")
	t.Setenv("NOTIFX_ALERT_RECIPIENTS", "a@x.io, b@x.io,")

	cfg := config.Load()
	if cfg.RateLimit.GenerationLimit != 7 {
		t.Fatalf("expected 7, got %d", cfg.RateLimit.GenerationLimit)
	}
	if cfg.RateLimit.GenerationWindow != 10*time.Minute {
		t.Fatalf("bare seconds should parse, got %s", cfg.RateLimit.GenerationWindow)
	}
	if cfg.RateLimit.ResendCooldown != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.RateLimit.ResendCooldown)
	}
	if cfg.RateLimit.EnableProgressiveDelay {
		t.Fatal("expected progressive delays disabled")
	}
	if got := cfg.Notifx.AlertRecipients; len(got) != 2 || got[1] != "b@x.io" {
		t.Fatalf("unexpected recipients: %v", got)
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("OTP_VERIFICATION_LIMIT", "five")
	t.Setenv("OTP_ACCOUNT_LOCK_DURATION", "soon")

	cfg := config.Load()
	if cfg.RateLimit.VerificationLimit != 5 {
		t.Fatalf("expected fallback 5, got %d", cfg.RateLimit.VerificationLimit)
	}
	if cfg.RateLimit.AccountLockDuration != time.Hour {
		t.Fatalf("expected fallback 1h, got %s", cfg.RateLimit.AccountLockDuration)
	}
}

func TestLoad_TokenSecretHasNoDefault(t *testing.T) {
	t.Setenv("OTP_TOKEN_SECRET", "")

	cfg := config.Load()
	if cfg.Token.Secret != "" || cfg.Token.Enabled() {
		t.Fatalf("tokens must stay disabled without a secret, got %+v", cfg.Token)
	}

	t.Setenv("OTP_TOKEN_SECRET", "k7Vq2x")
	if cfg := config.Load(); !cfg.Token.Enabled() || cfg.Token.Secret != "k7Vq2x" {
		t.Fatalf("expected configured secret, got %+v", cfg.Token)
	}
}
