package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestResetOTPLimiterPerEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewResetOTPLimiter(rdb, ResetOTPConfig{EnableIdentifierThrottle: true, Window: 10 * time.Minute, MaxAttempts: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.CheckConfirm(ctx, "a@x.com", ""); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	wait, err := l.CheckConfirm(ctx, "a@x.com", "")
	if !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("expected ErrResetRateLimited, got %v", err)
	}
	if wait <= 0 || wait > 10*time.Minute {
		t.Fatalf("unexpected wait %v", wait)
	}

	if _, err := l.CheckConfirm(ctx, "b@x.com", ""); err != nil {
		t.Fatalf("other email must not be limited: %v", err)
	}

	if err := l.Clear(ctx, "a@x.com"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := l.CheckConfirm(ctx, "a@x.com", ""); err != nil {
		t.Fatalf("expected cleared counter, got %v", err)
	}

	mr.FastForward(11 * time.Minute)
	if mr.Exists("aprc:b@x.com") {
		t.Fatal("expected window key to expire")
	}
}

func TestResetOTPLimiterPerIP(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewResetOTPLimiter(rdb, ResetOTPConfig{EnableIPThrottle: true, Window: time.Minute, MaxAttempts: 1})
	ctx := context.Background()

	if _, err := l.CheckConfirm(ctx, "a@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if _, err := l.CheckConfirm(ctx, "b@x.com", "10.0.0.1"); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("expected IP throttle, got %v", err)
	}
	if _, err := l.CheckConfirm(ctx, "b@x.com", ""); err != nil {
		t.Fatalf("empty IP must skip the IP window: %v", err)
	}
}

func TestRegistrationLimiter(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRegistrationLimiter(rdb, RegistrationConfig{EnableIPThrottle: true, MaxAttempts: 1, Window: time.Hour})
	ctx := context.Background()

	if _, err := l.Enforce(ctx, "a@x.com", "10.0.0.2"); err != nil {
		t.Fatalf("first sign-up: %v", err)
	}
	if _, err := l.Enforce(ctx, "b@x.com", "10.0.0.2"); !errors.Is(err, ErrRegistrationRateLimited) {
		t.Fatalf("expected ErrRegistrationRateLimited, got %v", err)
	}
}

func TestNilLimitersAllow(t *testing.T) {
	var r *RegistrationLimiter
	var p *ResetOTPLimiter
	ctx := context.Background()

	if _, err := r.Enforce(ctx, "a@x.com", "ip"); err != nil {
		t.Fatalf("nil registration limiter: %v", err)
	}
	if _, err := p.CheckConfirm(ctx, "a@x.com", "ip"); err != nil {
		t.Fatalf("nil reset limiter: %v", err)
	}
	if err := p.Clear(ctx, "a@x.com"); err != nil {
		t.Fatalf("nil reset limiter clear: %v", err)
	}
}
