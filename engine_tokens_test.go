package accountauth

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/accountauth/jwt"
)

func loginPair(t *testing.T, env *testEnv, email string) *LoginResult {
	t.Helper()
	env.registerVerified(t, email)
	res, err := env.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}

func TestRefreshIssuesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	pair := loginPair(t, env, "refresh@example.com")

	res, err := env.engine.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if res.RefreshToken != "" {
		t.Fatal("no rotation by default")
	}
	if _, err := env.engine.ValidateAccess(context.Background(), res.AccessToken); err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}
}

func TestRefreshErrorKinds(t *testing.T) {
	env := newTestEnv(t)
	pair := loginPair(t, env, "kinds@example.com")
	ctx := context.Background()

	_, err := env.engine.Refresh(ctx, "")
	requireKind(t, err, KindUnauthorized)

	_, err = env.engine.Refresh(ctx, "garbage")
	requireKind(t, err, KindForbidden)

	// An access token is the wrong kind.
	_, err = env.engine.Refresh(ctx, pair.AccessToken)
	requireKind(t, err, KindForbidden)

	env.clock.Advance(7*24*time.Hour + time.Second)
	_, err = env.engine.Refresh(ctx, pair.RefreshToken)
	requireKind(t, err, KindForbidden)
}

func TestRefreshUnknownAndInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orphan, _, err := env.engine.jwtManager.Issue(jwt.KindRefresh, jwt.Spec{Subject: "missing"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = env.engine.Refresh(ctx, orphan)
	requireKind(t, err, KindNotFound)

	pair := loginPair(t, env, "inactive@example.com")
	status := StatusInactive
	if _, err := env.repo.Update(ctx, pair.Account.ID, AccountUpdate{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, err = env.engine.Refresh(ctx, pair.RefreshToken)
	requireKind(t, err, KindForbidden)
}

func TestRefreshRotationRejectsReuse(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, withRedisClient(rdb), withConfig(func(c *Config) {
		c.Refresh.Rotate = true
		c.Metrics.Enabled = true
	}))
	pair := loginPair(t, env, "rotate@example.com")
	ctx := context.Background()

	first, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if first.RefreshToken == "" || first.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a replacement refresh token")
	}

	_, err = env.engine.Refresh(ctx, pair.RefreshToken)
	requireKind(t, err, KindForbidden)
	if env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatal("expected reuse to be counted")
	}

	if _, err := env.engine.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("replacement token refused: %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, withRedisClient(rdb))
	pair := loginPair(t, env, "logout@example.com")
	ctx := context.Background()

	if err := env.engine.Logout(ctx, pair.RefreshToken, pair.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	_, err := env.engine.Refresh(ctx, pair.RefreshToken)
	requireKind(t, err, KindForbidden)
	_, err = env.engine.ValidateAccess(ctx, pair.AccessToken)
	requireKind(t, err, KindUnauthorized)

	if err := env.engine.Logout(ctx, pair.RefreshToken, pair.AccessToken); err != nil {
		t.Fatalf("repeated logout failed: %v", err)
	}
	if err := env.engine.Logout(ctx, "", "garbage"); err != nil {
		t.Fatalf("logout with junk failed: %v", err)
	}
}

func TestLogoutWithoutRegistryKeepsTokensValid(t *testing.T) {
	env := newTestEnv(t)
	pair := loginPair(t, env, "stateless@example.com")
	ctx := context.Background()

	if err := env.engine.Logout(ctx, pair.RefreshToken, pair.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("expected stateless refresh to keep working, got %v", err)
	}
}

func TestValidateAccessErrors(t *testing.T) {
	env := newTestEnv(t)
	pair := loginPair(t, env, "validate@example.com")
	ctx := context.Background()

	_, err := env.engine.ValidateAccess(ctx, "")
	requireKind(t, err, KindUnauthorized)

	_, err = env.engine.ValidateAccess(ctx, pair.RefreshToken)
	requireKind(t, err, KindUnauthorized)

	env.clock.Advance(15*time.Minute + time.Second)
	_, err = env.engine.ValidateAccess(ctx, pair.AccessToken)
	requireKind(t, err, KindUnauthorized)
}
