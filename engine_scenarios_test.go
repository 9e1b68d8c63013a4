package accountauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScenarioRegisterVerifyLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, RegisterInput{Email: "a@x.com", Password: testPassword}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := env.engine.Login(ctx, "a@x.com", testPassword)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden before verification, got %v", err)
	}

	if _, err := env.engine.VerifyEmail(ctx, env.notifier.verificationToken(t)); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	res, err := env.engine.Login(ctx, "a@x.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected access and refresh tokens, got %+v", res)
	}
}

func TestScenarioPasswordResetThenLogin(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "a@x.com")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	token, err := env.engine.VerifyPasswordResetOTP(ctx, "a@x.com", env.notifier.resetCode(t, 6))
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}

	const next = "N3w!password"
	if err := env.engine.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: next}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "a@x.com", next); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "a@x.com", testPassword); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
}

func TestScenarioWrongOTPKeepsCodeValid(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "a@x.com")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	code := env.notifier.resetCode(t, 6)
	wrong := "999999"
	if code == wrong {
		wrong = "888888"
	}

	_, err := env.engine.VerifyPasswordResetOTP(ctx, "a@x.com", wrong)
	if !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected invalid or expired, got %v", err)
	}

	env.clock.Advance(9 * time.Minute)
	if _, err := env.engine.VerifyPasswordResetOTP(ctx, "a@x.com", code); err != nil {
		t.Fatalf("original code refused before expiry: %v", err)
	}
}

func TestScenarioOTPAtExpiryInstant(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "a@x.com")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	code := env.notifier.resetCode(t, 6)
	expiresAt := *env.repo.get(t, "a@x.com").ResetOTPExpiresAt

	env.clock.Advance(expiresAt.Sub(env.clock.Now()))
	_, err := env.engine.VerifyPasswordResetOTP(ctx, "a@x.com", code)
	if !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected code at its expiry instant to be expired, got %v", err)
	}
}
