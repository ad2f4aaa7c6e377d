// Package ratelimit implements fixed-window admission control backed by a
// shared Redis counter. The read-compare-increment-expire sequence runs as a
// single server-side script, so concurrent requests can never race a
// get-then-set pair past the limit.
package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-identity-core/apierrors"
)

// checkScript returns 0 when the call is admitted, or the counter's
// remaining time-to-live in milliseconds when it is denied.
var checkScript = redis.NewScript(`local key = KEYS[1]
local limit = tonumber(ARGV[1])
local expire_time = ARGV[2]
local current = tonumber(redis.call('get', key) or "0")
if current > 0 then
  if current + 1 > limit then
    return redis.call("PTTL", key)
  else
    redis.call("INCR", key)
    return 0
  end
else
  redis.call("SET", key, 1, "px", expire_time)
  return 0
end`)

// DefaultPrefix namespaces limiter keys in the shared store.
const DefaultPrefix = "limiter"

// Limiter is a Redis-backed fixed-window rate limiter.
type Limiter struct {
	client *redis.Client
	prefix string
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) LimiterOption {
	return func(l *Limiter) {
		l.prefix = prefix
	}
}

// NewLimiter creates a limiter over the given Redis client.
func NewLimiter(client *redis.Client, options ...LimiterOption) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("[NewLimiter] redis client is required")
	}
	l := &Limiter{client: client, prefix: DefaultPrefix}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Check admits or denies one call for the identifier. The first call in a
// window creates the counter with the window as its expiry; subsequent calls
// increment it until limit is reached. Denial returns an apierrors.Error
// with Code rate_limited and RetryAfter set to the counter's remaining
// lifetime.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int64, window time.Duration) error {
	key := l.prefix + ":" + identifier
	pttl, err := checkScript.Run(ctx, l.client,
		[]string{key}, limit, window.Milliseconds(),
	).Int64()
	if err != nil {
		return errors.Wrap(err, "Limiter.Check script run")
	}
	if pttl > 0 {
		return apierrors.RateLimited(time.Duration(pttl) * time.Millisecond)
	}
	return nil
}

// Identifier builds the default per-use-site key: originating ip plus the
// logical path of the guarded operation.
func Identifier(ip, path string) string {
	return ip + ":" + path
}
