package config

import "time"

// OTPConfig configures code lifetime.
type OTPConfig struct {
	Expiry time.Duration
}

// RateLimitConfig mirrors ratelimit.Config; cmd/ converts between them.
type RateLimitConfig struct {
	GenerationLimit        int
	GenerationWindow       time.Duration
	VerificationLimit      int
	ResendLimit            int
	ResendWindow           time.Duration
	ResendCooldown         time.Duration
	IPGlobalLimit          int
	IPGlobalWindow         time.Duration
	AccountLockDuration    time.Duration
	EnableProgressiveDelay bool
}

// CleanupConfig configures retention of OTP rows and attempt rows.
type CleanupConfig struct {
	OTPDays     int
	AttemptDays int
	Interval    time.Duration
	Enabled     bool
}

// TokenConfig configures verification tokens. There is no default secret;
// without OTP_TOKEN_SECRET tokens are not issued.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Enabled reports whether a signing secret was configured.
func (t TokenConfig) Enabled() bool { return t.Secret != "" }

// AdminConfig guards the admin routes. An empty token disables them.
type AdminConfig struct {
	Token string
}

func loadOTPConfig() OTPConfig {
	return OTPConfig{
		Expiry: getEnvDuration("OTP_EXPIRY", 5*time.Minute),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GenerationLimit:        getEnvInt("OTP_GENERATION_LIMIT", 3),
		GenerationWindow:       getEnvDuration("OTP_GENERATION_WINDOW", 15*time.Minute),
		VerificationLimit:      getEnvInt("OTP_VERIFICATION_LIMIT", 5),
		ResendLimit:            getEnvInt("OTP_RESEND_LIMIT", 3),
		ResendWindow:           getEnvDuration("OTP_RESEND_WINDOW", 60*time.Minute),
		ResendCooldown:         getEnvDuration("OTP_RESEND_COOLDOWN", 30*time.Second),
		IPGlobalLimit:          getEnvInt("OTP_IP_GLOBAL_LIMIT", 100),
		IPGlobalWindow:         getEnvDuration("OTP_IP_GLOBAL_WINDOW", 60*time.Minute),
		AccountLockDuration:    getEnvDuration("OTP_ACCOUNT_LOCK_DURATION", 60*time.Minute),
		EnableProgressiveDelay: getEnvBool("OTP_PROGRESSIVE_DELAYS", true),
	}
}

func loadCleanupConfig() CleanupConfig {
	return CleanupConfig{
		OTPDays:     getEnvInt("OTP_CLEANUP_OTP_DAYS", 7),
		AttemptDays: getEnvInt("OTP_CLEANUP_ATTEMPT_DAYS", 30),
		Interval:    getEnvDuration("OTP_CLEANUP_INTERVAL", 24*time.Hour),
		Enabled:     getEnvBool("OTP_CLEANUP_ENABLED", true),
	}
}

func loadTokenConfig() TokenConfig {
	return TokenConfig{
		Secret: getEnv("OTP_TOKEN_SECRET", ""),
		TTL:    getEnvDuration("OTP_TOKEN_TTL", 30*time.Minute),
		Issuer: getEnv("OTP_TOKEN_ISSUER", "otpguard"),
	}
}

func loadAdminConfig() AdminConfig {
	return AdminConfig{
		Token: getEnv("OTP_ADMIN_TOKEN", ""),
	}
}
