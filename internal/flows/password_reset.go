package flows

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ResetClaims is what a verified reset token carries.
type ResetClaims struct {
	TokenID     string
	Email       string
	Fingerprint string
	Remaining   time.Duration
}

// ResetPasswordRequest is the final reset step. Email, when set, must match
// the address the token was issued for.
type ResetPasswordRequest struct {
	Token       string
	NewPassword string
	Email       string
}

type PasswordResetMetrics struct {
	ResetRequested   int
	ResetRateLimited int
	OTPResent        int
	OTPVerified      int
	OTPRejected      int
	ResetCompleted   int
	ResetRejected    int
	NotificationFail int
}

// PasswordResetDeps captures the three-step reset dependencies.
type PasswordResetDeps struct {
	OTPDigits int
	OTPTTL    time.Duration
	Cooldown  time.Duration

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	FindByEmail func(context.Context, string) (*AccountRecord, error)

	GenerateOTP  func(digits int) (string, error)
	ValidOTP     func(code string, digits int) bool
	HashOTP      func(accountID, code string) (string, error)
	EqualOTPHash func(a, b string) bool

	StoreResetOTP   func(ctx context.Context, accountID, hash string, expiresAt time.Time) error
	MarkOTPSent     func(ctx context.Context, accountID string, at time.Time) error
	ConsumeResetOTP func(ctx context.Context, accountID, expectedHash string) error
	IsStale         func(error) bool
	SendResetOTP    func(ctx context.Context, acct AccountRecord, code string) error

	CheckVerifyRate func(ctx context.Context, email, ip string) (time.Duration, error)
	ClearVerifyRate func(ctx context.Context, email string) error
	IsRateLimited   func(error) bool

	PasswordFingerprint func(hash string) string
	IssueResetToken     func(acct AccountRecord, fingerprint string) (string, error)
	ParseResetToken     func(token string) (ResetClaims, error)
	IsRevoked           func(ctx context.Context, tokenID string) (bool, error)
	Revoke              func(ctx context.Context, tokenID string, ttl time.Duration) error

	CheckPasswordPolicy func(string) error
	HashPassword        func(string) (string, error)
	SetPassword         func(ctx context.Context, accountID, hash string) error

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metrics   PasswordResetMetrics
	Errors    Errors
}

// RunRequestPasswordReset stores a fresh OTP digest for the account and mails
// the code.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	acct, err := resetAccount(ctx, email, deps)
	if err != nil {
		return err
	}
	if err := deps.checkOTPCooldown(*acct); err != nil {
		return err
	}
	if err := issueResetOTP(ctx, *acct, deps); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.ResetRequested)
	return nil
}

// RunResendOTP replaces an outstanding reset OTP with a new one.
func RunResendOTP(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	acct, err := resetAccount(ctx, email, deps)
	if err != nil {
		return err
	}
	if acct.ResetOTPHash == "" {
		return deps.Errors.Validation("no password reset has been requested")
	}
	if err := deps.checkOTPCooldown(*acct); err != nil {
		return err
	}
	if err := issueResetOTP(ctx, *acct, deps); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.OTPResent)
	return nil
}

// RunVerifyPasswordResetOTP consumes a matching, unexpired OTP and returns a
// reset token bound to the account's email.
func RunVerifyPasswordResetOTP(ctx context.Context, email, code string, deps PasswordResetDeps) (string, error) {
	normalizePasswordResetDeps(&deps)
	if deps.FindByEmail == nil || deps.HashOTP == nil || deps.ConsumeResetOTP == nil || deps.IssueResetToken == nil {
		return "", deps.Errors.Internal(errNotReady)
	}

	if !deps.ValidOTP(code, deps.OTPDigits) {
		return "", deps.Errors.Validation(fmt.Sprintf("otp must be a %d-digit code", deps.OTPDigits))
	}
	email = NormalizeEmail(email)
	if email == "" {
		return "", deps.Errors.Validation("email is required")
	}

	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return "", deps.Errors.Internal(err)
	}
	if acct == nil {
		return "", deps.Errors.NotFound(accountNotFoundMessage)
	}

	if deps.CheckVerifyRate != nil {
		wait, err := deps.CheckVerifyRate(ctx, email, clientIP(deps.ClientIPFromContext, ctx))
		if err != nil {
			if deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.ResetRateLimited)
				return "", deps.Errors.RateLimited("too many otp attempts", ceilSeconds(wait))
			}
			deps.Logger.Error().Err(err).Str("email", email).Msg("otp throttle unavailable")
			return "", deps.Errors.Internal(err)
		}
	}

	invalid := deps.Errors.InvalidOrExpired("invalid or expired otp", http.StatusBadRequest)
	if acct.ResetOTPHash == "" || acct.ResetOTPExpiresAt.IsZero() || !deps.Now().Before(acct.ResetOTPExpiresAt) {
		deps.MetricInc(deps.Metrics.OTPRejected)
		return "", invalid
	}

	provided, err := deps.HashOTP(acct.ID, code)
	if err != nil {
		return "", deps.Errors.Internal(err)
	}
	if !deps.EqualOTPHash(provided, acct.ResetOTPHash) {
		deps.MetricInc(deps.Metrics.OTPRejected)
		return "", invalid
	}

	if err := deps.ConsumeResetOTP(ctx, acct.ID, acct.ResetOTPHash); err != nil {
		if deps.IsStale(err) {
			deps.MetricInc(deps.Metrics.OTPRejected)
			return "", invalid
		}
		return "", deps.Errors.Internal(err)
	}

	if deps.ClearVerifyRate != nil {
		if err := deps.ClearVerifyRate(ctx, email); err != nil {
			deps.Logger.Warn().Err(err).Str("email", email).Msg("otp throttle reset failed")
		}
	}

	token, err := deps.IssueResetToken(*acct, deps.PasswordFingerprint(acct.PasswordHash))
	if err != nil {
		return "", deps.Errors.Internal(err)
	}
	deps.MetricInc(deps.Metrics.OTPVerified)
	return token, nil
}

// RunResetPassword replaces the password of the account a valid reset token
// names. A token stops working once the password it was issued against has
// changed, whether or not a revocation registry is present.
func RunResetPassword(ctx context.Context, req ResetPasswordRequest, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.ParseResetToken == nil || deps.FindByEmail == nil || deps.HashPassword == nil || deps.SetPassword == nil {
		return deps.Errors.Internal(errNotReady)
	}

	invalid := deps.Errors.InvalidOrExpired("invalid or expired reset token", http.StatusUnauthorized)
	if req.Token == "" {
		deps.MetricInc(deps.Metrics.ResetRejected)
		return invalid
	}
	if req.NewPassword == "" {
		return deps.Errors.Validation("new password is required")
	}

	claims, err := deps.ParseResetToken(req.Token)
	if err != nil || claims.Email == "" {
		deps.MetricInc(deps.Metrics.ResetRejected)
		return invalid
	}
	if req.Email != "" && NormalizeEmail(req.Email) != claims.Email {
		deps.MetricInc(deps.Metrics.ResetRejected)
		return invalid
	}
	if deps.IsRevoked != nil && claims.TokenID != "" {
		revoked, err := deps.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return deps.Errors.Internal(err)
		}
		if revoked {
			deps.MetricInc(deps.Metrics.ResetRejected)
			return invalid
		}
	}

	if deps.CheckPasswordPolicy != nil {
		if err := deps.CheckPasswordPolicy(req.NewPassword); err != nil {
			return deps.Errors.Validation(err.Error())
		}
	}

	acct, err := deps.FindByEmail(ctx, claims.Email)
	if err != nil {
		return deps.Errors.Internal(err)
	}
	if acct == nil {
		return deps.Errors.NotFound(accountNotFoundMessage)
	}
	if deps.PasswordFingerprint(acct.PasswordHash) != claims.Fingerprint {
		deps.MetricInc(deps.Metrics.ResetRejected)
		return invalid
	}

	hash, err := deps.HashPassword(req.NewPassword)
	if err != nil {
		return deps.Errors.Internal(err)
	}
	if err := deps.SetPassword(ctx, acct.ID, hash); err != nil {
		return deps.Errors.Internal(err)
	}

	if deps.Revoke != nil && claims.TokenID != "" {
		if err := deps.Revoke(ctx, claims.TokenID, claims.Remaining); err != nil {
			deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("reset token not revoked")
		}
	}
	deps.MetricInc(deps.Metrics.ResetCompleted)
	return nil
}

func resetAccount(ctx context.Context, email string, deps PasswordResetDeps) (*AccountRecord, error) {
	if deps.FindByEmail == nil || deps.GenerateOTP == nil || deps.HashOTP == nil ||
		deps.StoreResetOTP == nil || deps.SendResetOTP == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}

	email = NormalizeEmail(email)
	if email == "" {
		return nil, deps.Errors.Validation("email is required")
	}
	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if acct == nil {
		return nil, deps.Errors.NotFound(accountNotFoundMessage)
	}
	if !acct.PasswordLogin {
		return nil, deps.Errors.Validation("password reset is only available for password accounts")
	}
	return acct, nil
}

func (deps PasswordResetDeps) checkOTPCooldown(acct AccountRecord) error {
	if wait := cooldownRemaining(acct.LastOTPSentAt, deps.Now(), deps.Cooldown); wait > 0 {
		deps.MetricInc(deps.Metrics.ResetRateLimited)
		return deps.Errors.RateLimited("otp recently sent", ceilSeconds(wait))
	}
	return nil
}

// issueResetOTP replaces the stored digest before mailing the code, so a
// code that was delivered is always the current one. The cooldown anchor is
// only moved once the mail went out.
func issueResetOTP(ctx context.Context, acct AccountRecord, deps PasswordResetDeps) error {
	code, err := deps.GenerateOTP(deps.OTPDigits)
	if err != nil {
		return deps.Errors.Internal(err)
	}
	hash, err := deps.HashOTP(acct.ID, code)
	if err != nil {
		return deps.Errors.Internal(err)
	}

	now := deps.Now()
	if err := deps.StoreResetOTP(ctx, acct.ID, hash, now.Add(deps.OTPTTL)); err != nil {
		return deps.Errors.Internal(err)
	}
	if err := deps.SendResetOTP(ctx, acct, code); err != nil {
		deps.MetricInc(deps.Metrics.NotificationFail)
		deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("reset otp not delivered")
		return deps.Errors.Delivery(err)
	}
	if deps.MarkOTPSent != nil {
		if err := deps.MarkOTPSent(ctx, acct.ID, now); err != nil {
			return deps.Errors.Internal(err)
		}
	}
	return nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.OTPDigits == 0 {
		deps.OTPDigits = 6
	}
	if deps.ValidOTP == nil {
		deps.ValidOTP = func(code string, digits int) bool { return len(code) == digits }
	}
	if deps.EqualOTPHash == nil {
		deps.EqualOTPHash = func(a, b string) bool { return a != "" && a == b }
	}
	if deps.PasswordFingerprint == nil {
		deps.PasswordFingerprint = func(string) string { return "" }
	}
	if deps.IsStale == nil {
		deps.IsStale = func(error) bool { return false }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
}
