package flows

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TokenClaims is the flow-local view of a verified access or refresh token.
type TokenClaims struct {
	TokenID   string
	AccountID string
	Email     string
	Role      string
	ExpiresAt time.Time
	Remaining time.Duration
}

// RefreshResult carries the new access token and, when rotation is on, the
// replacement refresh token.
type RefreshResult struct {
	Account      AccountRecord
	AccessToken  string
	RefreshToken string
}

type RefreshMetrics struct {
	RefreshSuccess  int
	RefreshFailure  int
	RefreshReuse    int
	RefreshRotation int
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Rotate bool

	ParseRefresh func(string) (TokenClaims, error)
	IsRevoked    func(ctx context.Context, tokenID string) (bool, error)
	Revoke       func(ctx context.Context, tokenID string, ttl time.Duration) error

	FindByID     func(context.Context, string) (*AccountRecord, error)
	IssueAccess  func(AccountRecord) (string, error)
	IssueRefresh func(AccountRecord) (string, error)

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metrics   RefreshMetrics
	Errors    Errors
}

// RunRefresh exchanges a refresh token for a new access token.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*RefreshResult, error) {
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
	if deps.ParseRefresh == nil || deps.FindByID == nil || deps.IssueAccess == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}
	if deps.Rotate && (deps.IssueRefresh == nil || deps.Revoke == nil) {
		return nil, deps.Errors.Internal(errNotReady)
	}

	if refreshToken == "" {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.Unauthorized("refresh token required")
	}

	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil || claims.AccountID == "" {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.Forbidden("invalid refresh token")
	}
	if deps.IsRevoked != nil {
		revoked, err := deps.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, deps.Errors.Internal(err)
		}
		if revoked {
			deps.MetricInc(deps.Metrics.RefreshReuse)
			deps.Logger.Warn().Str("account_id", claims.AccountID).Str("token_id", claims.TokenID).Msg("revoked refresh token presented")
			return nil, deps.Errors.Forbidden("invalid refresh token")
		}
	}

	acct, err := deps.FindByID(ctx, claims.AccountID)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if acct == nil {
		return nil, deps.Errors.NotFound(accountNotFoundMessage)
	}
	if !acct.Active {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.Forbidden("account inactive")
	}

	access, err := deps.IssueAccess(*acct)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	result := &RefreshResult{Account: *acct, AccessToken: access}

	if deps.Rotate {
		if err := deps.Revoke(ctx, claims.TokenID, claims.Remaining); err != nil {
			return nil, deps.Errors.Internal(err)
		}
		refresh, err := deps.IssueRefresh(*acct)
		if err != nil {
			return nil, deps.Errors.Internal(err)
		}
		result.RefreshToken = refresh
		deps.MetricInc(deps.Metrics.RefreshRotation)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	return result, nil
}
