package ratelimitredis

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
	"github.com/redis/go-redis/v9"
)

// Store implements ratelimit.Store on Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

type Option func(*Store)

// WithPrefix namespaces every key, e.g. "staging:" + "otp:gen:...".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) key(k ratelimit.Key) string {
	return s.prefix + k.String()
}

func (s *Store) Get(ctx context.Context, k ratelimit.Key) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, redisErrors.NewWithCause(ErrGet, err).WithDetail("key", s.key(k))
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, k ratelimit.Key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.key(k), value, ttl).Err(); err != nil {
		return redisErrors.NewWithCause(ErrSet, err).WithDetail("key", s.key(k))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, k ratelimit.Key) error {
	if err := s.rdb.Del(ctx, s.key(k)).Err(); err != nil {
		return redisErrors.NewWithCause(ErrDelete, err).WithDetail("key", s.key(k))
	}
	return nil
}

func (s *Store) TTL(ctx context.Context, k ratelimit.Key) (time.Duration, bool, error) {
	d, err := s.rdb.PTTL(ctx, s.key(k)).Result()
	if err != nil {
		return 0, false, redisErrors.NewWithCause(ErrTTL, err).WithDetail("key", s.key(k))
	}
	// -2 missing, -1 no expiry
	if d <= 0 {
		return 0, false, nil
	}
	return d, true, nil
}

// incrScript sets the expiry only when INCR created the key.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = tonumber(ARGV[1])
if n == 1 and ttl > 0 then
    redis.call('PEXPIRE', KEYS[1], ttl)
end
return n
`)

func (s *Store) Incr(ctx context.Context, k ratelimit.Key, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(k)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, redisErrors.NewWithCause(ErrIncr, err).WithDetail("key", s.key(k))
	}
	return n, nil
}
