package rate

import "errors"

var (
	// ErrRateLimited is returned when key has exhausted its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures; callers should fail open.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
