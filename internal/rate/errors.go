package rate

import "errors"

var (
	// ErrRateLimited is returned when a login counter has reached its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any backend failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
