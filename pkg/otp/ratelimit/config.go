package ratelimit

import (
	"fmt"
	"time"
)

// Config holds quota settings. Zero fields take the defaults.
type Config struct {
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

func DefaultConfig() Config {
	return Config{
		GenerationLimit:        3,
		GenerationWindow:       15 * time.Minute,
		VerificationLimit:      5,
		ResendLimit:            3,
		ResendWindow:           60 * time.Minute,
		ResendCooldown:         30 * time.Second,
		IPGlobalLimit:          100,
		IPGlobalWindow:         60 * time.Minute,
		AccountLockDuration:    60 * time.Minute,
		EnableProgressiveDelay: true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GenerationLimit <= 0 {
		c.GenerationLimit = d.GenerationLimit
	}
	if c.GenerationWindow <= 0 {
		c.GenerationWindow = d.GenerationWindow
	}
	if c.VerificationLimit <= 0 {
		c.VerificationLimit = d.VerificationLimit
	}
	if c.ResendLimit <= 0 {
		c.ResendLimit = d.ResendLimit
	}
	if c.ResendWindow <= 0 {
		c.ResendWindow = d.ResendWindow
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = d.ResendCooldown
	}
	if c.IPGlobalLimit <= 0 {
		c.IPGlobalLimit = d.IPGlobalLimit
	}
	if c.IPGlobalWindow <= 0 {
		c.IPGlobalWindow = d.IPGlobalWindow
	}
	if c.AccountLockDuration <= 0 {
		c.AccountLockDuration = d.AccountLockDuration
	}
	return c
}

func minutes(d time.Duration) string {
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}
