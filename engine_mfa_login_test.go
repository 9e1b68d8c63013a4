package accountauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newDelegatedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t, withConfig(func(c *Config) {
		delegatedMode(c)
		c.Metrics.Enabled = true
	}))
	env.registerVerified(t, "mfa@example.com")
	return env
}

func TestDelegatedVerifyProvisionsIdentity(t *testing.T) {
	env := newDelegatedEnv(t)

	acct := env.repo.get(t, "mfa@example.com")
	if acct.ExternalSubjectID != "sub-mfa@example.com" {
		t.Fatalf("expected provider subject, got %q", acct.ExternalSubjectID)
	}
	if acct.PendingProviderSecret != "" {
		t.Fatal("expected pending secret to be cleared after provisioning")
	}
	if env.mfa.provisioned["mfa@example.com"] != testPassword {
		t.Fatal("expected provider identity to carry the registered password")
	}
}

func TestDelegatedVerifyWithoutPendingSecretFails(t *testing.T) {
	env := newTestEnv(t, withConfig(delegatedMode))
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, RegisterInput{Email: "lost@example.com", Password: testPassword}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	acct := env.repo.get(t, "lost@example.com")
	if _, err := env.repo.Update(ctx, acct.ID, AccountUpdate{ClearPendingProviderSecret: true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := env.engine.VerifyEmail(ctx, env.notifier.verificationToken(t))
	requireKind(t, err, KindInternal)
	if env.repo.get(t, "lost@example.com").EmailVerified {
		t.Fatal("account must stay unverified when provisioning fails")
	}
}

func TestDelegatedLoginRequiresMFA(t *testing.T) {
	env := newDelegatedEnv(t)
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "mfa@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !res.MFARequired || res.Challenge != "SOFTWARE_TOKEN_MFA" || res.Session == "" {
		t.Fatalf("expected pending challenge, got %+v", res)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatal("no local credentials before the second factor")
	}
	if res.Session == "provider-session" {
		t.Fatal("provider session must be wrapped, not exposed")
	}

	done, err := env.engine.CompleteMFA(ctx, CompleteMFAInput{
		Session:   res.Session,
		Challenge: res.Challenge,
		Code:      "123456",
		Email:     "mfa@example.com",
	})
	if err != nil {
		t.Fatalf("complete mfa failed: %v", err)
	}
	if done.AccessToken == "" || done.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", done)
	}
	if done.Provider == nil || done.Provider.IDToken != "id" || done.Provider.AccessToken != "pa" {
		t.Fatalf("expected provider tokens, got %+v", done.Provider)
	}
	if env.repo.get(t, "mfa@example.com").LastLoginAt == nil {
		t.Fatal("expected last login timestamp after mfa")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricMFARequired] != 1 || snap.Counters[MetricMFASuccess] != 1 {
		t.Fatalf("unexpected mfa counters: required=%d success=%d", snap.Counters[MetricMFARequired], snap.Counters[MetricMFASuccess])
	}
}

func TestDelegatedLoginProviderSkipsChallenge(t *testing.T) {
	env := newDelegatedEnv(t)
	env.mfa.direct = &ProviderTokens{IDToken: "direct-id"}

	res, err := env.engine.Login(context.Background(), "mfa@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.MFARequired || res.AccessToken == "" || res.Provider == nil || res.Provider.IDToken != "direct-id" {
		t.Fatalf("expected direct issuance with provider tokens, got %+v", res)
	}
}

func TestCompleteMFAErrors(t *testing.T) {
	env := newDelegatedEnv(t)
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "mfa@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	base := CompleteMFAInput{Session: res.Session, Challenge: res.Challenge, Code: "123456", Email: "mfa@example.com"}

	missing := base
	missing.Code = ""
	_, err = env.engine.CompleteMFA(ctx, missing)
	requireKind(t, err, KindValidation)

	wrongEmail := base
	wrongEmail.Email = "other@example.com"
	_, err = env.engine.CompleteMFA(ctx, wrongEmail)
	requireKind(t, err, KindUnauthorized)

	badSession := base
	badSession.Session = "not-a-token"
	_, err = env.engine.CompleteMFA(ctx, badSession)
	requireKind(t, err, KindUnauthorized)

	wrongCode := base
	wrongCode.Code = "654321"
	_, err = env.engine.CompleteMFA(ctx, wrongCode)
	e := requireKind(t, err, KindUnauthorized)
	if !errors.Is(err, ErrMFACodeMismatch) || e.Message != "invalid verification code" {
		t.Fatalf("expected code mismatch, got %v", err)
	}

	env.mfa.completeErr = ErrMFACodeExpired
	_, err = env.engine.CompleteMFA(ctx, base)
	requireKind(t, err, KindUnauthorized)
	if !errors.Is(err, ErrMFACodeExpired) {
		t.Fatalf("expected expired sentinel, got %v", err)
	}

	env.mfa.completeErr = ErrMFAInvalidParameter
	_, err = env.engine.CompleteMFA(ctx, base)
	requireKind(t, err, KindValidation)

	env.mfa.completeErr = errors.New("provider exploded")
	_, err = env.engine.CompleteMFA(ctx, base)
	requireKind(t, err, KindInternal)
}

func TestCompleteMFASessionExpires(t *testing.T) {
	env := newDelegatedEnv(t)
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "mfa@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	env.clock.Advance(5*time.Minute + time.Second)

	_, err = env.engine.CompleteMFA(ctx, CompleteMFAInput{Session: res.Session, Challenge: res.Challenge, Code: "123456", Email: "mfa@example.com"})
	requireKind(t, err, KindUnauthorized)
}

func TestCompleteMFADirectModeRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.CompleteMFA(context.Background(), CompleteMFAInput{Session: "s", Challenge: "c", Code: "1", Email: "a@example.com"})
	requireKind(t, err, KindValidation)
}

func TestDelegatedLoginProviderRejectsPassword(t *testing.T) {
	env := newDelegatedEnv(t)
	env.mfa.initiateErr = ErrMFACredentials

	_, err := env.engine.Login(context.Background(), "mfa@example.com", testPassword)
	e := requireKind(t, err, KindUnauthorized)
	if e.Message != "invalid email or password" {
		t.Fatalf("expected generic credentials message, got %q", e.Message)
	}
}
