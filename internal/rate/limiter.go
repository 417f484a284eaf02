package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds lockout tuning parameters.
type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// Limiter counts failed logins per username and, optionally, per client IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "aa"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when either counter has reached the
// configured maximum. Both counters are read in one MGET.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	keys := []string{l.userKey(username)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.ipKey(ip))
	}

	vals, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return unavailable(err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return unavailable(err)
		}
		if n >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed attempt. It returns ErrRateLimited when
// this failure exhausted the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.userKey(username))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxLoginAttempts)

	if l.config.EnableIPThrottle && ip != "" {
		ipCount, err := l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || ipCount >= int64(l.config.MaxLoginAttempts)
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the username counter after a successful login. The IP
// counter is left alone so one valid account cannot launder a spraying IP.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, l.userKey(username)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// RetryAfter reports how long the username lockout has left. Zero means the
// username is not locked.
func (l *Limiter) RetryAfter(ctx context.Context, username string) (time.Duration, error) {
	count, err := l.GetLoginAttempts(ctx, username)
	if err != nil || count < l.config.MaxLoginAttempts {
		return 0, err
	}
	ttl, err := l.redis.PTTL(ctx, l.userKey(username)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// GetLoginAttempts returns the current failure counter for username.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetLoginAttempts(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.userKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	// Fixed window: TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.LockoutDuration).Err(); err != nil {
			return 0, unavailable(err)
		}
	}
	return count, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func (l *Limiter) userKey(username string) string {
	return l.config.Prefix + ":lu:" + strings.ToLower(strings.TrimSpace(username))
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":li:" + ip
}
