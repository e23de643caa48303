package ratelimitredis

import "github.com/Abraxas-365/otpguard/pkg/errx"

var redisErrors = errx.NewRegistry("RATELIMIT_REDIS")

var (
	ErrGet    = redisErrors.Register("GET", errx.TypeExternal, 500, "Redis counter read failed")
	ErrSet    = redisErrors.Register("SET", errx.TypeExternal, 500, "Redis counter write failed")
	ErrDelete = redisErrors.Register("DELETE", errx.TypeExternal, 500, "Redis counter delete failed")
	ErrTTL    = redisErrors.Register("TTL", errx.TypeExternal, 500, "Redis ttl read failed")
	ErrIncr   = redisErrors.Register("INCR", errx.TypeExternal, 500, "Redis counter increment failed")
)
