package limiters

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow counts one hit against key. It reports whether the budget is
// exceeded and, if so, how long until the window closes.
func fixedWindow(ctx context.Context, rdb redis.UniversalClient, key string, window time.Duration, max int) (bool, time.Duration, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count <= int64(max) {
		return false, 0, nil
	}

	ttl, err := rdb.PTTL(ctx, key).Result()
	if err != nil {
		return true, window, nil
	}
	if ttl <= 0 {
		ttl = window
	}
	return true, ttl, nil
}
