package config

import "fmt"

// RedisConfig configures Redis and the counter store mode.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// Store is "redis" or "memory"
	Store string
}

// Address returns host:port
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Store:    getEnv("RATELIMIT_STORE", "redis"),
	}
}
