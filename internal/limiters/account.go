package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited      = errors.New("registration rate limited")
	ErrRegistrationRedisUnavailable = errors.New("registration redis unavailable")
)

type RegistrationConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Window                   time.Duration
}

type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one sign-up attempt. The duration is only meaningful when
// the error is ErrRegistrationRateLimited.
func (l *RegistrationLimiter) Enforce(ctx context.Context, email, ip string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	if l.config.EnableIdentifierThrottle {
		if wait, err := l.enforceKey(ctx, registrationIdentifierKey(email)); err != nil {
			return wait, err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if wait, err := l.enforceKey(ctx, registrationIPKey(ip)); err != nil {
			return wait, err
		}
	}

	return 0, nil
}

func (l *RegistrationLimiter) enforceKey(ctx context.Context, key string) (time.Duration, error) {
	limited, wait, err := fixedWindow(ctx, l.redis, key, l.config.Window, l.config.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	if limited {
		return wait, ErrRegistrationRateLimited
	}
	return 0, nil
}

func registrationIdentifierKey(email string) string {
	return "arg:" + email
}

func registrationIPKey(ip string) string {
	return "argip:" + ip
}
