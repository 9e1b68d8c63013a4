package flows

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RegisterRequest is the flow-local sign-up input. Provider is already
// validated by the caller.
type RegisterRequest struct {
	Email         string
	Name          string
	Password      string
	Provider      string
	PasswordLogin bool
}

// NewAccountRecord is what RunRegister asks the host to persist.
type NewAccountRecord struct {
	Email                 string
	Name                  string
	Provider              string
	PasswordHash          string
	PendingProviderSecret string
}

type RegisterMetrics struct {
	RegisterSuccess     int
	RegisterConflict    int
	RegisterRateLimited int
	NotificationFailure int
}

// RegisterDeps captures sign-up dependencies.
type RegisterDeps struct {
	Delegated bool

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	CheckRate     func(ctx context.Context, email, ip string) (time.Duration, error)
	IsRateLimited func(error) bool

	CheckPasswordPolicy func(string) error
	HashPassword        func(string) (string, error)
	SealSecret          func(string) (string, error)

	FindByEmail   func(context.Context, string) (*AccountRecord, error)
	CreateAccount func(context.Context, NewAccountRecord) (*AccountRecord, error)
	IsDuplicate   func(error) bool

	VerificationLink     func(AccountRecord) (string, error)
	SendVerification     func(ctx context.Context, acct AccountRecord, link string) error
	MarkVerificationSent func(ctx context.Context, accountID string, at time.Time) error

	MetricInc func(int)
	Logger    *zerolog.Logger
	Metrics   RegisterMetrics
	Errors    Errors
}

// RunRegister creates an unverified account and sends its verification link.
// When the account was stored but the email could not be sent, the record is
// returned together with a delivery error.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*AccountRecord, error) {
	normalizeRegisterDeps(&deps)
	if deps.FindByEmail == nil || deps.CreateAccount == nil || deps.HashPassword == nil ||
		deps.VerificationLink == nil || deps.SendVerification == nil {
		return nil, deps.Errors.Internal(errNotReady)
	}

	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, deps.Errors.Validation("email is required")
	}
	if !plausibleEmail(email) {
		return nil, deps.Errors.Validation("email is invalid")
	}
	if req.PasswordLogin {
		if req.Password == "" {
			return nil, deps.Errors.Validation("password is required")
		}
		if deps.CheckPasswordPolicy != nil {
			if err := deps.CheckPasswordPolicy(req.Password); err != nil {
				return nil, deps.Errors.Validation(err.Error())
			}
		}
	}

	if deps.CheckRate != nil {
		wait, err := deps.CheckRate(ctx, email, clientIP(deps.ClientIPFromContext, ctx))
		if err != nil {
			if deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.RegisterRateLimited)
				return nil, deps.Errors.RateLimited("too many registration attempts", ceilSeconds(wait))
			}
			deps.Logger.Error().Err(err).Str("email", email).Msg("registration throttle unavailable")
			return nil, deps.Errors.Internal(err)
		}
	}

	existing, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return nil, deps.Errors.Internal(err)
	}
	if existing != nil {
		deps.MetricInc(deps.Metrics.RegisterConflict)
		if existing.EmailVerified {
			return nil, deps.Errors.Conflict("already registered")
		}
		return nil, deps.Errors.Conflict("pending verification")
	}

	rec := NewAccountRecord{
		Email:    email,
		Name:     req.Name,
		Provider: req.Provider,
	}
	if req.PasswordLogin {
		hash, err := deps.HashPassword(req.Password)
		if err != nil {
			return nil, deps.Errors.Internal(err)
		}
		rec.PasswordHash = hash

		if deps.Delegated {
			if deps.SealSecret == nil {
				return nil, deps.Errors.Internal(errNotReady)
			}
			sealed, err := deps.SealSecret(req.Password)
			if err != nil {
				return nil, deps.Errors.Internal(err)
			}
			rec.PendingProviderSecret = sealed
		}
	}

	acct, err := deps.CreateAccount(ctx, rec)
	if err != nil {
		if deps.IsDuplicate(err) {
			deps.MetricInc(deps.Metrics.RegisterConflict)
			return nil, deps.Errors.Conflict("pending verification")
		}
		return nil, deps.Errors.Internal(err)
	}

	link, err := deps.VerificationLink(*acct)
	if err != nil {
		return acct, deps.Errors.Internal(err)
	}
	if err := deps.SendVerification(ctx, *acct, link); err != nil {
		deps.MetricInc(deps.Metrics.NotificationFailure)
		deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("verification email not delivered")
		return acct, deps.Errors.Delivery(err)
	}

	if deps.MarkVerificationSent != nil {
		if err := deps.MarkVerificationSent(ctx, acct.ID, deps.Now()); err != nil {
			deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("verification timestamp not stored")
		}
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	return acct, nil
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) bool { return false }
	}
	deps.MetricInc = noopMetric(deps.MetricInc)
	deps.Logger = nopLogger(deps.Logger)
}
