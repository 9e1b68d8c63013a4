package flows

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LoginResult is the flow-local login response shape. Either the token pair
// is set or MFARequired is true with Challenge and Session describing the
// pending step.
type LoginResult struct {
	Account      AccountRecord
	AccessToken  string
	RefreshToken string
	MFARequired  bool
	Challenge    string
	Session      string
	Provider     *ProviderTokens
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
}

// LoginDeps captures password login dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckRate     func(ctx context.Context, email, ip string) (time.Duration, error)
	IsRateLimited func(error) bool
	RecordFailure func(ctx context.Context, email, ip string) error
	ResetRate     func(ctx context.Context, email string) error

	FindByEmail    func(context.Context, string) (*AccountRecord, error)
	VerifyPassword func(password, hash string) (bool, error)
	VerifyDummy    func(password string)

	// Issue turns a checked account into credentials or a pending challenge.
	Issue func(ctx context.Context, acct AccountRecord, password string) (*LoginResult, error)

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metrics   LoginMetrics
	Errors    Errors
}

// RunLogin checks email and password and hands the account to deps.Issue.
// Unknown accounts and wrong passwords fail with the same message after the
// same amount of hashing work.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.FindByEmail == nil || deps.VerifyPassword == nil || deps.Issue == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, deps.Errors.Validation("email and password are required")
	}

	ip := clientIP(deps.ClientIPFromContext, ctx)
	if deps.CheckRate != nil {
		wait, err := deps.CheckRate(ctx, email, ip)
		if err != nil {
			if deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				return nil, deps.Errors.RateLimited("too many login attempts", ceilSeconds(wait))
			}
			deps.Logger.Error().Err(err).Str("email", email).Msg("login throttle unavailable")
			return nil, deps.Errors.Internal(err)
		}
	}

	acct, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if acct == nil {
		deps.VerifyDummy(password)
		return nil, loginFailure(ctx, email, ip, deps)
	}
	if !acct.EmailVerified {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.Forbidden("verify email first")
	}
	if !acct.Active {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.Forbidden("account inactive")
	}
	if !acct.PasswordLogin || acct.PasswordHash == "" {
		deps.VerifyDummy(password)
		return nil, loginFailure(ctx, email, ip, deps)
	}

	ok, err := deps.VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		deps.Logger.Error().Err(err).Str("account_id", acct.ID).Msg("stored password hash unreadable")
		return nil, deps.Errors.Internal(err)
	}
	if !ok {
		return nil, loginFailure(ctx, email, ip, deps)
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, email); err != nil {
			deps.Logger.Warn().Err(err).Str("email", email).Msg("login throttle reset failed")
		}
	}

	result, err := deps.Issue(ctx, *acct, password)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, err
	}
	if !result.MFARequired {
		deps.MetricInc(deps.Metrics.LoginSuccess)
	}
	return result, nil
}

func loginFailure(ctx context.Context, email, ip string, deps LoginDeps) error {
	deps.MetricInc(deps.Metrics.LoginFailure)
	if deps.RecordFailure != nil {
		if err := deps.RecordFailure(ctx, email, ip); err != nil {
			deps.Logger.Warn().Err(err).Str("email", email).Msg("login failure not recorded")
		}
	}
	return deps.Errors.Unauthorized(InvalidCredentialsMessage)
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
}
