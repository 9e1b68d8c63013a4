package accountauth

import (
	"context"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/jwt"
)

// Refresh exchanges a refresh token for a new access token. An empty token
// fails with ErrUnauthorized; an invalid, expired or revoked one with
// ErrForbidden. With Config.Refresh.Rotate the presented token is revoked
// and a replacement is returned.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	res, err := e.flows.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, nil
}

// Logout revokes whichever of the given tokens still parse, when a
// revocation registry is configured. It always succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if !e.ready() {
		return nil
	}
	e.flows.Logout(ctx, refreshToken, accessToken)
	return nil
}

// ValidateAccess verifies an access token and returns its principal. A
// token of a deleted account fails with ErrUnauthorized, one of a suspended
// or inactive account with ErrForbidden.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*Principal, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	claims, err := e.flows.ValidateAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &Principal{
		AccountID: claims.AccountID,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (e *Engine) refreshFlowDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		Rotate:       e.config.Refresh.Rotate,
		ParseRefresh: e.parseTokenClaims(jwt.KindRefresh),
		IsRevoked:    e.isRevokedFunc(),
		Revoke:       e.revokeFunc(),
		FindByID:     e.findByID,
		IssueAccess:  e.issueAccess,
		IssueRefresh: e.issueRefresh,
		MetricInc:    e.flowMetricInc,
		Logger:       e.logger,
		Metrics: flows.RefreshMetrics{
			RefreshSuccess:  int(MetricRefreshSuccess),
			RefreshFailure:  int(MetricRefreshFailure),
			RefreshReuse:    int(MetricRefreshReuseDetected),
			RefreshRotation: int(MetricRefreshRotated),
		},
		Errors: flowErrors(),
	}
}

func (e *Engine) validateFlowDeps() flows.ValidateDeps {
	return flows.ValidateDeps{
		ParseAccess: e.parseTokenClaims(jwt.KindAccess),
		IsRevoked:   e.isRevokedFunc(),
		FindByID:    e.findByID,
		Errors:      flowErrors(),
	}
}

func (e *Engine) logoutFlowDeps() flows.LogoutDeps {
	return flows.LogoutDeps{
		ParseRefresh: e.parseTokenClaims(jwt.KindRefresh),
		ParseAccess:  e.parseTokenClaims(jwt.KindAccess),
		Revoke:       e.revokeFunc(),
		MetricInc:    e.flowMetricInc,
		Logger:       e.logger,
		Metric:       int(MetricLogout),
	}
}
