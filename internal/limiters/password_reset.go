package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type ResetOTPConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxAttempts              int
}

// ResetOTPLimiter bounds how many reset codes can be tried per email and per
// client address within a window.
type ResetOTPLimiter struct {
	redis  redis.UniversalClient
	config ResetOTPConfig
}

func NewResetOTPLimiter(redisClient redis.UniversalClient, cfg ResetOTPConfig) *ResetOTPLimiter {
	return &ResetOTPLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *ResetOTPLimiter) CheckConfirm(ctx context.Context, email, ip string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	if l.config.EnableIdentifierThrottle {
		if wait, err := l.enforceFixedWindow(ctx, confirmIdentifierKey(email)); err != nil {
			return wait, err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if wait, err := l.enforceFixedWindow(ctx, confirmIPKey(ip)); err != nil {
			return wait, err
		}
	}
	return 0, nil
}

// Clear drops the per-email counter after a successful confirmation.
func (l *ResetOTPLimiter) Clear(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, confirmIdentifierKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func (l *ResetOTPLimiter) enforceFixedWindow(ctx context.Context, key string) (time.Duration, error) {
	limited, wait, err := fixedWindow(ctx, l.redis, key, l.config.Window, l.config.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	if limited {
		return wait, ErrResetRateLimited
	}
	return 0, nil
}

func confirmIdentifierKey(email string) string {
	return "aprc:" + email
}

func confirmIPKey(ip string) string {
	return "aprcip:" + ip
}
