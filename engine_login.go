package accountauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/internal/rate"
	"github.com/MrEthical07/accountauth/jwt"
)

// Login checks email and password.
//
// In direct mode a successful login returns an access and refresh token
// pair. In delegated mode the MFA provider is asked for a challenge and the
// result carries MFARequired, the challenge name and an MFA session token to
// pass to CompleteMFA. Unknown email and wrong password fail with the same
// ErrUnauthorized message.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}

	start := e.now()
	res, err := e.flows.Login(ctx, email, password)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
	}
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// CompleteMFA answers the challenge raised by a delegated Login and, once
// the provider accepts the code, issues the local token pair alongside the
// provider's tokens.
func (e *Engine) CompleteMFA(ctx context.Context, in CompleteMFAInput) (*LoginResult, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	res, err := e.flows.CompleteMFA(ctx, flows.CompleteMFARequest{
		Session:   in.Session,
		Challenge: in.Challenge,
		Code:      in.Code,
		Email:     in.Email,
	})
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

func toLoginResult(res *flows.LoginResult) *LoginResult {
	return &LoginResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		MFARequired:  res.MFARequired,
		Challenge:    res.Challenge,
		Session:      res.Session,
		Provider:     fromFlowTokens(res.Provider),
		Account:      recordView(res.Account),
	}
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		ClientIPFromContext: clientIPFromContext,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, rate.ErrRateLimited)
		},
		FindByEmail:    e.findByEmail,
		VerifyPassword: e.passwordHash.Verify,
		VerifyDummy:    e.passwordHash.VerifyDummy,
		Issue: func(ctx context.Context, rec flows.AccountRecord, password string) (*flows.LoginResult, error) {
			return e.issuer.issue(ctx, rec, password)
		},
		MetricInc: e.flowMetricInc,
		Logger:    e.logger,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
		},
		Errors: flowErrors(),
	}
	if e.rateLimiter != nil {
		deps.CheckRate = e.rateLimiter.CheckLogin
		deps.RecordFailure = e.rateLimiter.IncrementLogin
		deps.ResetRate = e.rateLimiter.ResetLogin
	}
	return deps
}

func (e *Engine) mfaFlowDeps() flows.MFADeps {
	deps := flows.MFADeps{
		Enabled: e.config.Login.Mode == LoginModeDelegated && e.mfa != nil,
		Now:     e.now,
		ParseSession: func(token string) (flows.MFASession, error) {
			claims, err := e.jwtManager.Parse(jwt.KindMFASession, token)
			if err != nil {
				return flows.MFASession{}, err
			}
			return flows.MFASession{
				AccountID: claims.Subject,
				Email:     claims.Email,
				Handle:    claims.Handle,
			}, nil
		},
		MapProviderError: mapProviderError,
		FindByID:         e.findByID,
		IssuePair:        e.issuePair,
		MarkLogin:        e.markLogin,
		MetricInc:        e.flowMetricInc,
		Logger:           e.logger,
		Metrics: flows.MFAMetrics{
			MFASuccess: int(MetricMFASuccess),
			MFAFailure: int(MetricMFAFailure),
		},
		Errors: flowErrors(),
	}
	if e.mfa != nil {
		deps.CompleteChallenge = func(ctx context.Context, email, handle, challenge, code string) (*flows.ProviderTokens, error) {
			tokens, err := e.mfa.CompleteChallenge(ctx, email, handle, challenge, code)
			if err != nil {
				return nil, err
			}
			return toFlowTokens(tokens), nil
		}
	}
	return deps
}
