package accountauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func requestReset(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	if err := env.engine.RequestPasswordReset(context.Background(), email); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	return env.notifier.resetCode(t, 6)
}

func TestRequestPasswordResetStoresOnlyDigest(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "reset@example.com")

	code := requestReset(t, env, "reset@example.com")
	acct := env.repo.get(t, "reset@example.com")
	if acct.ResetOTPHash == "" || strings.Contains(acct.ResetOTPHash, code) {
		t.Fatalf("expected keyed digest, got %q", acct.ResetOTPHash)
	}
	if acct.ResetOTPExpiresAt == nil || !acct.ResetOTPExpiresAt.Equal(env.clock.Now().Add(10*time.Minute)) {
		t.Fatalf("expected 10m expiry, got %v", acct.ResetOTPExpiresAt)
	}
	if acct.LastOTPSentAt == nil || !acct.LastOTPSentAt.Equal(env.clock.Now()) {
		t.Fatalf("expected otp send anchor, got %v", acct.LastOTPSentAt)
	}
	if env.notifier.last(t).subject != "Password Reset OTP" {
		t.Fatalf("unexpected subject %q", env.notifier.last(t).subject)
	}
}

func TestRequestPasswordResetRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	requireKind(t, env.engine.RequestPasswordReset(ctx, ""), KindValidation)
	requireKind(t, env.engine.RequestPasswordReset(ctx, "ghost@example.com"), KindNotFound)

	if _, err := env.engine.Register(ctx, RegisterInput{Email: "oauth@example.com", LoginMethod: LoginMethod{Provider: ProviderGoogle}}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	requireKind(t, env.engine.RequestPasswordReset(ctx, "oauth@example.com"), KindValidation)

	env.registerVerified(t, "cool@example.com")
	requestReset(t, env, "cool@example.com")
	env.clock.Advance(30 * time.Second)
	err := env.engine.RequestPasswordReset(ctx, "cool@example.com")
	requireKind(t, err, KindRateLimited)
	if got := RetryAfterSeconds(err); got != 30 {
		t.Fatalf("expected 30s retry-after, got %d", got)
	}
}

func TestVerifyOTPIssuesResetTokenOnce(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "once@example.com")
	ctx := context.Background()
	code := requestReset(t, env, "once@example.com")

	token, err := env.engine.VerifyPasswordResetOTP(ctx, "once@example.com", code)
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected reset token")
	}
	acct := env.repo.get(t, "once@example.com")
	if acct.ResetOTPHash != "" || acct.ResetOTPExpiresAt != nil {
		t.Fatal("expected otp state cleared after verification")
	}

	_, err = env.engine.VerifyPasswordResetOTP(ctx, "once@example.com", code)
	requireKind(t, err, KindInvalidOrExpired)
}

func TestVerifyOTPWrongCodeDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "wrong@example.com")
	ctx := context.Background()
	code := requestReset(t, env, "wrong@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	before := env.repo.updateCount()
	_, err := env.engine.VerifyPasswordResetOTP(ctx, "wrong@example.com", wrong)
	e := requireKind(t, err, KindInvalidOrExpired)
	if e.StatusCode() != 400 {
		t.Fatalf("expected 400, got %d", e.StatusCode())
	}
	if env.repo.updateCount() != before {
		t.Fatal("a rejected code must not write")
	}

	if _, err := env.engine.VerifyPasswordResetOTP(ctx, "wrong@example.com", code); err != nil {
		t.Fatalf("correct code refused after a wrong attempt: %v", err)
	}
}

func TestVerifyOTPFormatAndAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		_, err := env.engine.VerifyPasswordResetOTP(ctx, "a@example.com", code)
		requireKind(t, err, KindValidation)
	}
	_, err := env.engine.VerifyPasswordResetOTP(ctx, "ghost@example.com", "123456")
	requireKind(t, err, KindNotFound)

	env.registerVerified(t, "never@example.com")
	_, err = env.engine.VerifyPasswordResetOTP(ctx, "never@example.com", "123456")
	requireKind(t, err, KindInvalidOrExpired)
}

func TestVerifyOTPExpiryBoundaryIsExclusive(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "edge@example.com")
	ctx := context.Background()
	code := requestReset(t, env, "edge@example.com")

	env.clock.Advance(10*time.Minute - time.Nanosecond)
	if _, err := env.engine.VerifyPasswordResetOTP(ctx, "edge@example.com", code); err != nil {
		t.Fatalf("code refused just before expiry: %v", err)
	}

	env.clock.Advance(time.Minute)
	code = requestReset(t, env, "edge@example.com")
	env.clock.Advance(10 * time.Minute)
	_, err := env.engine.VerifyPasswordResetOTP(ctx, "edge@example.com", code)
	requireKind(t, err, KindInvalidOrExpired)
}

func TestVerifyOTPConcurrentSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "race@example.com")
	code := requestReset(t, env, "race@example.com")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.VerifyPasswordResetOTP(context.Background(), "race@example.com", code); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", success)
	}
}

func TestVerifyOTPThrottle(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, withRedisClient(rdb), withConfig(func(c *Config) {
		c.PasswordReset.EnableThrottle = true
		c.PasswordReset.MaxVerifyAttempts = 2
	}))
	env.registerVerified(t, "brute@example.com")
	ctx := context.Background()
	code := requestReset(t, env, "brute@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 2; i++ {
		_, err := env.engine.VerifyPasswordResetOTP(ctx, "brute@example.com", wrong)
		requireKind(t, err, KindInvalidOrExpired)
	}
	_, err := env.engine.VerifyPasswordResetOTP(ctx, "brute@example.com", code)
	requireKind(t, err, KindRateLimited)
}

func TestResendOTPReplacesCode(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "resend@example.com")
	ctx := context.Background()

	requireKind(t, env.engine.ResendOTP(ctx, "resend@example.com"), KindValidation)

	first := requestReset(t, env, "resend@example.com")
	err := env.engine.ResendOTP(ctx, "resend@example.com")
	requireKind(t, err, KindRateLimited)
	if wait := RetryAfterSeconds(err); wait <= 0 || wait > 60 {
		t.Fatalf("expected 0 < wait <= 60, got %d", wait)
	}

	env.clock.Advance(time.Minute)
	if err := env.engine.ResendOTP(ctx, "resend@example.com"); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	second := env.notifier.resetCode(t, 6)

	if first != second {
		_, err = env.engine.VerifyPasswordResetOTP(ctx, "resend@example.com", first)
		requireKind(t, err, KindInvalidOrExpired)
	}
	if _, err := env.engine.VerifyPasswordResetOTP(ctx, "resend@example.com", second); err != nil {
		t.Fatalf("fresh code refused: %v", err)
	}
	requireKind(t, env.engine.ResendOTP(ctx, "ghost@example.com"), KindNotFound)
}

func TestResetPasswordFlow(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, withRedisClient(rdb))
	env.registerVerified(t, "flow@example.com")
	ctx := context.Background()

	token, err := env.engine.VerifyPasswordResetOTP(ctx, "flow@example.com", requestReset(t, env, "flow@example.com"))
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}

	const next = "N3w!password"
	requireKind(t, env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "weak"}), KindValidation)

	if err := env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: next, Email: "flow@example.com"}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "flow@example.com", next); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "flow@example.com", testPassword); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password still accepted: %v", err)
	}

	err = env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "An0ther!pass"})
	e := requireKind(t, err, KindInvalidOrExpired)
	if e.StatusCode() != 401 {
		t.Fatalf("expected 401 for reused reset token, got %d", e.StatusCode())
	}
}

func TestResetTokenSingleUseWithoutRegistry(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "fp@example.com")
	ctx := context.Background()

	token, err := env.engine.VerifyPasswordResetOTP(ctx, "fp@example.com", requestReset(t, env, "fp@example.com"))
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "N3w!password"}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	err = env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "An0ther!pass"})
	requireKind(t, err, KindInvalidOrExpired)
}

func TestResetTokenBoundToEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "bound@example.com")
	ctx := context.Background()

	token, err := env.engine.VerifyPasswordResetOTP(ctx, "bound@example.com", requestReset(t, env, "bound@example.com"))
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}
	err = env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "N3w!password", Email: "intruder@example.com"})
	requireKind(t, err, KindInvalidOrExpired)

	if _, err := env.engine.Login(ctx, "bound@example.com", testPassword); err != nil {
		t.Fatalf("password must be unchanged after rejected reset: %v", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "slow@example.com")
	ctx := context.Background()

	token, err := env.engine.VerifyPasswordResetOTP(ctx, "slow@example.com", requestReset(t, env, "slow@example.com"))
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}
	env.clock.Advance(10*time.Minute + time.Second)
	requireKind(t, env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "N3w!password"}), KindInvalidOrExpired)
	requireKind(t, env.engine.ResetPassword(ctx, ResetPasswordInput{NewPassword: "N3w!password"}), KindInvalidOrExpired)
}

func TestResetOTPDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "nomail@example.com")
	env.notifier.fail = errors.New("smtp down")

	err := env.engine.RequestPasswordReset(context.Background(), "nomail@example.com")
	requireKind(t, err, KindDelivery)
	if env.repo.get(t, "nomail@example.com").LastOTPSentAt != nil {
		t.Fatal("cooldown anchor must not move when the code was not delivered")
	}
}
