package flows

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CompleteMFARequest answers a challenge raised by a delegated login.
type CompleteMFARequest struct {
	Session   string
	Challenge string
	Code      string
	Email     string
}

// MFASession is what a verified mfa_session token carries.
type MFASession struct {
	AccountID string
	Email     string
	Handle    string
}

type MFAMetrics struct {
	MFASuccess int
	MFAFailure int
}

// MFADeps captures challenge completion dependencies.
type MFADeps struct {
	Enabled bool

	Now func() time.Time

	ParseSession      func(token string) (MFASession, error)
	CompleteChallenge func(ctx context.Context, email, handle, challenge, code string) (*ProviderTokens, error)
	MapProviderError  func(error) error

	FindByID  func(context.Context, string) (*AccountRecord, error)
	IssuePair func(context.Context, AccountRecord) (access, refresh string, err error)
	MarkLogin func(ctx context.Context, accountID string, at time.Time) error

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metrics   MFAMetrics
	Errors    Errors
}

// RunCompleteMFA forwards the code to the provider and, once accepted, issues
// the local token pair alongside the provider's tokens.
func RunCompleteMFA(ctx context.Context, req CompleteMFARequest, deps MFADeps) (*LoginResult, error) {
	normalizeMFADeps(&deps)
	if !deps.Enabled {
		return nil, deps.Errors.Validation("multi-factor login is not enabled")
	}
	if deps.ParseSession == nil || deps.CompleteChallenge == nil || deps.FindByID == nil || deps.IssuePair == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}

	email := NormalizeEmail(req.Email)
	if req.Session == "" || req.Challenge == "" || req.Code == "" || email == "" {
		return nil, deps.Errors.Validation("session, challenge, code and email are required")
	}

	sess, err := deps.ParseSession(req.Session)
	if err != nil || sess.Email != email {
		deps.MetricInc(deps.Metrics.MFAFailure)
		return nil, deps.Errors.Unauthorized("invalid or expired mfa session")
	}

	tokens, err := deps.CompleteChallenge(ctx, email, sess.Handle, req.Challenge, req.Code)
	if err != nil {
		deps.MetricInc(deps.Metrics.MFAFailure)
		mapped := deps.MapProviderError(err)
		deps.Logger.Debug().Err(err).Str("account_id", sess.AccountID).Msg("mfa challenge rejected")
		return nil, mapped
	}

	acct, err := deps.FindByID(ctx, sess.AccountID)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if acct == nil {
		return nil, deps.Errors.NotFound(accountNotFoundMessage)
	}
	if !acct.Active {
		return nil, deps.Errors.Forbidden("account inactive")
	}

	access, refresh, err := deps.IssuePair(ctx, *acct)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if deps.MarkLogin != nil {
		if err := deps.MarkLogin(ctx, acct.ID, deps.Now()); err != nil {
			deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("last login not stored")
		}
	}

	deps.MetricInc(deps.Metrics.MFASuccess)
	return &LoginResult{
		Account:      *acct,
		AccessToken:  access,
		RefreshToken: refresh,
		Provider:     tokens,
	}, nil
}

func normalizeMFADeps(deps *MFADeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MapProviderError == nil {
		deps.MapProviderError = deps.Errors.Internal
	}
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
}
