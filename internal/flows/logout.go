package flows

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogoutDeps captures logout dependencies. Without Revoke, logout has nothing
// to do server-side.
type LogoutDeps struct {
	ParseRefresh func(string) (TokenClaims, error)
	ParseAccess  func(string) (TokenClaims, error)
	Revoke       func(ctx context.Context, tokenID string, ttl time.Duration) error

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metric    int
}

// RunLogout deny-lists whatever still-valid tokens it is handed. It never
// fails: an empty or garbage token simply has nothing to revoke.
func RunLogout(ctx context.Context, refreshToken, accessToken string, deps LogoutDeps) {
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
	defer deps.MetricInc(deps.Metric)

	if deps.Revoke == nil {
		return
	}
	revoke := func(token string, parse func(string) (TokenClaims, error)) {
		if token == "" || parse == nil {
			return
		}
		claims, err := parse(token)
		if err != nil || claims.TokenID == "" {
			return
		}
		if err := deps.Revoke(ctx, claims.TokenID, claims.Remaining); err != nil {
			deps.Logger.Warn().Err(err).Str("account_id", claims.AccountID).Msg("token not revoked on logout")
		}
	}
	revoke(refreshToken, deps.ParseRefresh)
	revoke(accessToken, deps.ParseAccess)
}
