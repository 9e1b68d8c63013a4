package rate

import "errors"

var (
	// ErrRateLimited is returned once a window has exhausted its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
