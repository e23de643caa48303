package config

import "time"

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string
	CORSOrigins     string
	TrustedProxies  []string
	Debug           bool
	AppVersion      string
	ShutdownTimeout time.Duration
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "8080"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		TrustedProxies:  getEnvStringSlice("TRUSTED_PROXIES", nil),
		Debug:           getEnvBool("DEBUG", false),
		AppVersion:      getEnv("APP_VERSION", "1.0.0"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}
