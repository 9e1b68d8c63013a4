package accountauth

import (
	"context"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/jwt"
)

// VerifyEmail marks the account named by a verification token as verified
// and active. Repeating it for a verified account succeeds without writing.
// In delegated mode the account is provisioned at the MFA provider first.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*VerifyResult, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	res, err := e.flows.VerifyEmail(ctx, token)
	if err != nil {
		return nil, err
	}
	msg := "email verified"
	if res.AlreadyVerified {
		msg = "email already verified"
	}
	return &VerifyResult{
		AccountID:       res.Account.ID,
		AlreadyVerified: res.AlreadyVerified,
		Message:         msg,
	}, nil
}

// ResendVerification mails a fresh verification link. It is refused with
// ErrRateLimited within Config.Cooldown.Verification of the previous send.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return internalError(ErrEngineNotReady)
	}
	return e.flows.ResendVerification(ctx, email)
}

func (e *Engine) verificationFlowDeps() flows.VerificationDeps {
	deps := flows.VerificationDeps{
		Delegated: e.config.Login.Mode == LoginModeDelegated,
		Cooldown:  e.config.Cooldown.Verification,
		Now:       e.now,
		ParseVerification: func(token string) (string, error) {
			claims, err := e.jwtManager.Parse(jwt.KindVerification, token)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		},
		FindByID:             e.findByID,
		FindByEmail:          e.findByEmail,
		MarkVerified:         e.markVerified,
		VerificationLink:     e.verificationLink,
		SendVerification:     e.sendVerification,
		MarkVerificationSent: e.markVerificationSent,
		MetricInc:            e.flowMetricInc,
		Logger:               e.logger,
		Metrics: flows.VerificationMetrics{
			VerificationSuccess:     int(MetricEmailVerificationSuccess),
			VerificationFailure:     int(MetricEmailVerificationFailure),
			VerificationResent:      int(MetricEmailVerificationResent),
			VerificationRateLimited: int(MetricEmailVerificationRateLimited),
			NotificationFailure:     int(MetricNotificationFailure),
		},
		Errors: flowErrors(),
	}
	if e.sealer != nil {
		deps.OpenSecret = e.sealer.Open
	}
	if e.mfa != nil {
		deps.ProvisionIdentity = e.mfa.ProvisionIdentity
	}
	return deps
}

func (e *Engine) markVerified(ctx context.Context, id, externalSubjectID string) error {
	verified := true
	status := StatusActive
	upd := AccountUpdate{
		EmailVerified:              &verified,
		Status:                     &status,
		ClearPendingProviderSecret: true,
	}
	if externalSubjectID != "" {
		upd.ExternalSubjectID = &externalSubjectID
	}
	return e.update(ctx, id, upd)
}
