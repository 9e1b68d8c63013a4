package flows

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var errPendingSecretMissing = errors.New("pending provider secret missing")

type VerificationMetrics struct {
	VerificationSuccess     int
	VerificationFailure     int
	VerificationResent      int
	VerificationRateLimited int
	NotificationFailure     int
}

// VerificationDeps captures email verification and resend dependencies.
type VerificationDeps struct {
	Delegated bool
	Cooldown  time.Duration

	Now func() time.Time

	ParseVerification func(token string) (accountID string, err error)
	FindByID          func(context.Context, string) (*AccountRecord, error)
	FindByEmail       func(context.Context, string) (*AccountRecord, error)

	OpenSecret        func(string) (string, error)
	ProvisionIdentity func(ctx context.Context, email, temporaryPassword string) (string, error)
	MarkVerified      func(ctx context.Context, accountID, externalSubjectID string) error

	VerificationLink     func(AccountRecord) (string, error)
	SendVerification     func(ctx context.Context, acct AccountRecord, link string) error
	MarkVerificationSent func(ctx context.Context, accountID string, at time.Time) error

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metrics   VerificationMetrics
	Errors    Errors
}

// VerifyEmailResult reports the verified account and whether it was already
// verified before this call.
type VerifyEmailResult struct {
	Account         AccountRecord
	AlreadyVerified bool
}

// RunVerifyEmail marks the account named by token as verified and active.
// Verifying an already verified account succeeds without any write.
func RunVerifyEmail(ctx context.Context, token string, deps VerificationDeps) (*VerifyEmailResult, error) {
	normalizeVerificationDeps(&deps)
	if deps.ParseVerification == nil || deps.FindByID == nil || deps.MarkVerified == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}

	invalid := deps.Errors.InvalidOrExpired("invalid or expired verification token", http.StatusBadRequest)
	if token == "" {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		return nil, invalid
	}
	accountID, err := deps.ParseVerification(token)
	if err != nil || accountID == "" {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		return nil, invalid
	}

	acct, err := deps.FindByID(ctx, accountID)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if acct == nil {
		return nil, deps.Errors.NotFound(accountNotFoundMessage)
	}
	if acct.EmailVerified {
		return &VerifyEmailResult{Account: *acct, AlreadyVerified: true}, nil
	}

	subject := acct.ExternalSubjectID
	if deps.Delegated && acct.PasswordLogin && subject == "" {
		subject, err = provisionIdentity(ctx, *acct, deps)
		if err != nil {
			deps.Logger.Error().Err(err).Str("account_id", acct.ID).Msg("identity provisioning failed")
			return nil, deps.Errors.Internal(err)
		}
	}

	if err := deps.MarkVerified(ctx, acct.ID, subject); err != nil {
		return nil, deps.Errors.Internal(err)
	}

	acct.EmailVerified = true
	acct.Active = true
	acct.ExternalSubjectID = subject
	acct.PendingProviderSecret = ""
	deps.MetricInc(deps.Metrics.VerificationSuccess)
	return &VerifyEmailResult{Account: *acct}, nil
}

func provisionIdentity(ctx context.Context, acct AccountRecord, deps VerificationDeps) (string, error) {
	if deps.OpenSecret == nil || deps.ProvisionIdentity == nil {
		return "", errNotReady
	}
	if acct.PendingProviderSecret == "" {
		return "", errPendingSecretMissing
	}
	temporary, err := deps.OpenSecret(acct.PendingProviderSecret)
	if err != nil {
		return "", err
	}
	return deps.ProvisionIdentity(ctx, acct.Email, temporary)
}

// RunResendVerification sends a fresh verification link unless one went out
// within the cooldown.
func RunResendVerification(ctx context.Context, email string, deps VerificationDeps) error {
	normalizeVerificationDeps(&deps)
	if deps.FindByEmail == nil || deps.VerificationLink == nil || deps.SendVerification == nil {
		return deps.Errors.Internal(errNotReady)
	}

	email = NormalizeEmail(email)
	if email == "" {
		return deps.Errors.Validation("email is required")
	}

	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return deps.Errors.Internal(err)
	}
	if acct == nil {
		return deps.Errors.NotFound(accountNotFoundMessage)
	}
	if acct.EmailVerified {
		return deps.Errors.Validation("email already verified")
	}

	now := deps.Now()
	if wait := cooldownRemaining(acct.LastVerificationSentAt, now, deps.Cooldown); wait > 0 {
		deps.MetricInc(deps.Metrics.VerificationRateLimited)
		return deps.Errors.RateLimited("verification email recently sent", ceilSeconds(wait))
	}

	link, err := deps.VerificationLink(*acct)
	if err != nil {
		return deps.Errors.Internal(err)
	}
	if err := deps.SendVerification(ctx, *acct, link); err != nil {
		deps.MetricInc(deps.Metrics.NotificationFailure)
		deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("verification email not delivered")
		return deps.Errors.Delivery(err)
	}

	if deps.MarkVerificationSent != nil {
		if err := deps.MarkVerificationSent(ctx, acct.ID, now); err != nil {
			return deps.Errors.Internal(err)
		}
	}
	deps.MetricInc(deps.Metrics.VerificationResent)
	return nil
}

func normalizeVerificationDeps(deps *VerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
}
