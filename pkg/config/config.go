package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/joho/godotenv"
)

// Config is the root configuration, assembled from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Cleanup   CleanupConfig
	Token     TokenConfig
	Admin     AdminConfig
	Jobx      JobxConfig
	Notifx    NotifxConfig
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logx.Debug("No .env file found, using process environment")
	}

	return &Config{
		Server:    loadServerConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		OTP:       loadOTPConfig(),
		RateLimit: loadRateLimitConfig(),
		Cleanup:   loadCleanupConfig(),
		Token:     loadTokenConfig(),
		Admin:     loadAdminConfig(),
		Jobx:      loadJobxConfig(),
		Notifx:    loadNotifxConfig(),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logx.Warnf("config: %s=%q is not an integer, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logx.Warnf("config: %s=%q is not a boolean, using %t", key, value, fallback)
		return fallback
	}
	return b
}

// getEnvDuration accepts Go durations ("15m") or bare seconds ("900").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	logx.Warnf("config: %s=%q is not a duration, using %s", key, value, fallback)
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
