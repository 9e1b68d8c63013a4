package accountauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/jwt"
)

// credentialIssuer turns an account whose password was just checked into
// credentials or a pending second factor. Build picks the implementation
// from Config.Login.Mode.
type credentialIssuer interface {
	issue(ctx context.Context, rec flows.AccountRecord, password string) (*flows.LoginResult, error)
}

type directIssuer struct {
	engine *Engine
}

func (d directIssuer) issue(ctx context.Context, rec flows.AccountRecord, password string) (*flows.LoginResult, error) {
	e := d.engine
	e.upgradePasswordHash(ctx, rec, password)

	access, refresh, err := e.issuePair(ctx, rec)
	if err != nil {
		return nil, internalError(err)
	}
	if err := e.markLogin(ctx, rec.ID, e.now()); err != nil {
		e.logger.Warn().Err(err).Str("account_id", rec.ID).Msg("last login not stored")
	}
	return &flows.LoginResult{
		Account:      rec,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

type delegatedIssuer struct {
	engine   *Engine
	provider MFAProvider
}

// issue starts the provider's challenge. When the provider answers with
// tokens straight away no second step is needed and the local pair is
// issued as in direct mode.
func (d delegatedIssuer) issue(ctx context.Context, rec flows.AccountRecord, password string) (*flows.LoginResult, error) {
	e := d.engine
	challenge, err := d.provider.InitiateChallenge(ctx, rec.Email, password)
	if err != nil {
		e.logger.Warn().Err(err).Str("account_id", rec.ID).Msg("mfa challenge not started")
		return nil, mapProviderError(err)
	}
	if challenge == nil {
		return nil, internalError(errors.New("mfa provider returned no challenge"))
	}

	if challenge.Challenge == "" {
		access, refresh, err := e.issuePair(ctx, rec)
		if err != nil {
			return nil, internalError(err)
		}
		if err := e.markLogin(ctx, rec.ID, e.now()); err != nil {
			e.logger.Warn().Err(err).Str("account_id", rec.ID).Msg("last login not stored")
		}
		return &flows.LoginResult{
			Account:      rec,
			AccessToken:  access,
			RefreshToken: refresh,
			Provider:     toFlowTokens(challenge.Tokens),
		}, nil
	}

	session, _, err := e.jwtManager.Issue(jwt.KindMFASession, jwt.Spec{
		Subject: rec.ID,
		Email:   rec.Email,
		Handle:  challenge.Session,
	})
	if err != nil {
		return nil, internalError(err)
	}
	e.metricInc(MetricMFARequired)
	return &flows.LoginResult{
		Account:     rec,
		MFARequired: true,
		Challenge:   challenge.Challenge,
		Session:     session,
	}, nil
}

// upgradePasswordHash rehashes with the current argon2 parameters after a
// successful login. Failures are logged and never fail the login.
func (e *Engine) upgradePasswordHash(ctx context.Context, rec flows.AccountRecord, password string) {
	if !e.config.Password.UpgradeOnLogin || rec.PasswordHash == "" {
		return
	}
	needs, err := e.passwordHash.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwordHash.Hash(password)
	if err != nil {
		e.logger.Warn().Err(err).Str("account_id", rec.ID).Msg("password rehash failed")
		return
	}
	if err := e.update(ctx, rec.ID, AccountUpdate{PasswordHash: &hash}); err != nil {
		e.logger.Warn().Err(err).Str("account_id", rec.ID).Msg("password rehash not stored")
	}
}

// mapProviderError sorts MFA provider failures into the error taxonomy.
func mapProviderError(err error) error {
	switch {
	case errors.Is(err, ErrMFACodeMismatch):
		return &Error{Kind: KindUnauthorized, Message: "invalid verification code", Err: err}
	case errors.Is(err, ErrMFACodeExpired):
		return &Error{Kind: KindUnauthorized, Message: "verification code has expired", Err: err}
	case errors.Is(err, ErrMFAInvalidParameter):
		return &Error{Kind: KindValidation, Message: "invalid mfa parameters", Err: err}
	case errors.Is(err, ErrMFACredentials):
		return &Error{Kind: KindUnauthorized, Message: flows.InvalidCredentialsMessage, Err: err}
	default:
		return internalError(err)
	}
}

func toFlowTokens(t *ProviderTokens) *flows.ProviderTokens {
	if t == nil {
		return nil
	}
	return &flows.ProviderTokens{
		IDToken:      t.IDToken,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
}

func fromFlowTokens(t *flows.ProviderTokens) *ProviderTokens {
	if t == nil {
		return nil
	}
	return &ProviderTokens{
		IDToken:      t.IDToken,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
}
