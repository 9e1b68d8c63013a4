package accountauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/internal/limiters"
	"github.com/MrEthical07/accountauth/internal/mailtmpl"
	"github.com/MrEthical07/accountauth/internal/otp"
	"github.com/MrEthical07/accountauth/jwt"
)

// RequestPasswordReset mails a one-time code to a password account. Only
// the code's keyed digest and expiry are stored.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return internalError(ErrEngineNotReady)
	}
	return e.flows.RequestPasswordReset(ctx, email)
}

// ResendOTP replaces an outstanding reset code with a fresh one, subject to
// the same cooldown as RequestPasswordReset.
func (e *Engine) ResendOTP(ctx context.Context, email string) error {
	if !e.ready() {
		return internalError(ErrEngineNotReady)
	}
	return e.flows.ResendOTP(ctx, email)
}

// VerifyPasswordResetOTP consumes a matching, unexpired code and returns a
// reset token bound to the account's email. A code is accepted at most
// once; it expires at exactly its expiry instant.
func (e *Engine) VerifyPasswordResetOTP(ctx context.Context, email, code string) (string, error) {
	if !e.ready() {
		return "", internalError(ErrEngineNotReady)
	}
	return e.flows.VerifyPasswordResetOTP(ctx, email, code)
}

// ResetPassword sets a new password using a reset token.
func (e *Engine) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if !e.ready() {
		return internalError(ErrEngineNotReady)
	}
	return e.flows.ResetPassword(ctx, flows.ResetPasswordRequest{
		Token:       in.Token,
		NewPassword: in.NewPassword,
		Email:       in.Email,
	})
}

func (e *Engine) passwordResetFlowDeps() flows.PasswordResetDeps {
	deps := flows.PasswordResetDeps{
		OTPDigits:           e.config.OTP.Digits,
		OTPTTL:              e.config.OTP.TTL,
		Cooldown:            e.config.Cooldown.OTP,
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		FindByEmail:         e.findByEmail,
		GenerateOTP:         otp.Generate,
		ValidOTP:            otp.Valid,
		HashOTP: func(accountID, code string) (string, error) {
			return otp.Hash(e.config.OTP.Secret, accountID, code)
		},
		EqualOTPHash: otp.Equal,
		StoreResetOTP: func(ctx context.Context, accountID, hash string, expiresAt time.Time) error {
			return e.update(ctx, accountID, AccountUpdate{ResetOTP: &ResetOTP{Hash: hash, ExpiresAt: expiresAt}})
		},
		MarkOTPSent: func(ctx context.Context, accountID string, at time.Time) error {
			return e.update(ctx, accountID, AccountUpdate{LastOTPSentAt: &at})
		},
		ConsumeResetOTP: func(ctx context.Context, accountID, expectedHash string) error {
			return e.update(ctx, accountID, AccountUpdate{ClearResetOTP: true, IfResetOTPHash: &expectedHash})
		},
		IsStale: func(err error) bool {
			return errors.Is(err, ErrStaleAccount)
		},
		SendResetOTP: e.sendResetOTP,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, limiters.ErrResetRateLimited)
		},
		PasswordFingerprint: passwordFingerprint,
		IssueResetToken: func(rec flows.AccountRecord, fingerprint string) (string, error) {
			token, _, err := e.jwtManager.Issue(jwt.KindReset, jwt.Spec{
				Subject:     rec.ID,
				Email:       rec.Email,
				Fingerprint: fingerprint,
			})
			return token, err
		},
		ParseResetToken: func(token string) (flows.ResetClaims, error) {
			claims, err := e.jwtManager.Parse(jwt.KindReset, token)
			if err != nil {
				return flows.ResetClaims{}, err
			}
			return flows.ResetClaims{
				TokenID:     claims.ID,
				Email:       claims.Email,
				Fingerprint: claims.Fingerprint,
				Remaining:   e.jwtManager.Remaining(claims),
			}, nil
		},
		IsRevoked:           e.isRevokedFunc(),
		Revoke:              e.revokeFunc(),
		CheckPasswordPolicy: e.config.Password.Policy.Check,
		HashPassword:        e.passwordHash.Hash,
		SetPassword: func(ctx context.Context, accountID, hash string) error {
			return e.update(ctx, accountID, AccountUpdate{PasswordHash: &hash, ClearResetOTP: true})
		},
		MetricInc: e.flowMetricInc,
		Logger:    e.logger,
		Metrics: flows.PasswordResetMetrics{
			ResetRequested:   int(MetricPasswordResetRequest),
			ResetRateLimited: int(MetricPasswordResetRateLimited),
			OTPResent:        int(MetricPasswordResetOTPResent),
			OTPVerified:      int(MetricPasswordResetOTPVerified),
			OTPRejected:      int(MetricPasswordResetOTPRejected),
			ResetCompleted:   int(MetricPasswordResetSuccess),
			ResetRejected:    int(MetricPasswordResetRejected),
			NotificationFail: int(MetricNotificationFailure),
		},
		Errors: flowErrors(),
	}
	if e.resetLimiter != nil {
		deps.CheckVerifyRate = e.resetLimiter.CheckConfirm
		deps.ClearVerifyRate = e.resetLimiter.Clear
	}
	return deps
}

func (e *Engine) sendResetOTP(ctx context.Context, rec flows.AccountRecord, code string) error {
	body, err := mailtmpl.PasswordReset(rec.Name, code, e.config.OTP.TTL)
	if err != nil {
		return err
	}
	return e.notifier.Send(ctx, rec.Email, mailtmpl.PasswordResetSubject, body)
}
