package accountauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/internal/limiters"
	"github.com/MrEthical07/accountauth/internal/rate"
	"github.com/MrEthical07/accountauth/internal/sealer"
	"github.com/MrEthical07/accountauth/jwt"
	"github.com/MrEthical07/accountauth/password"
	"github.com/rs/zerolog"
)

// Engine is the account authentication state machine. It is built once by
// Builder.Build and is safe for concurrent use.
type Engine struct {
	config Config

	repository AccountRepository
	notifier   Notifier
	mfa        MFAProvider
	objects    ObjectStore
	revocation RevocationRegistry

	rateLimiter         *rate.Limiter
	registrationLimiter *limiters.RegistrationLimiter
	resetLimiter        *limiters.ResetOTPLimiter

	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	sealer       *sealer.Sealer
	issuer       credentialIssuer

	metrics *Metrics
	logger  *zerolog.Logger
	now     func() time.Time

	flows flows.Service
}

// MetricsSnapshot returns the current counters. It is empty when metrics
// are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// LoginMode reports the credential issuance mode the Engine was built with.
func (e *Engine) LoginMode() LoginMode {
	if e == nil {
		return ""
	}
	return e.config.Login.Mode
}

// AccessTTL is the lifetime of issued access tokens.
func (e *Engine) AccessTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.Tokens.AccessTTL
}

// RefreshTTL is the lifetime of issued refresh tokens. The HTTP boundary
// uses it for the refresh cookie MaxAge.
func (e *Engine) RefreshTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.Tokens.RefreshTTL
}

// MaxProfileImageBytes is the upload limit for profile images.
func (e *Engine) MaxProfileImageBytes() int64 {
	if e == nil {
		return 0
	}
	return e.config.Profile.MaxImageBytes
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.repository != nil && e.flows.Initialized()
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func flowErrors() flows.Errors {
	return flows.Errors{
		Validation:       validationError,
		Conflict:         conflictError,
		Unauthorized:     unauthorizedError,
		Forbidden:        forbiddenError,
		NotFound:         notFoundError,
		RateLimited:      rateLimitedError,
		InvalidOrExpired: invalidOrExpiredError,
		Delivery:         deliveryError,
		Internal:         internalError,
	}
}

func newFlowService(e *Engine) flows.Service {
	return flows.New(flows.Deps{
		Register:      e.registerFlowDeps(),
		Verification:  e.verificationFlowDeps(),
		Login:         e.loginFlowDeps(),
		MFA:           e.mfaFlowDeps(),
		PasswordReset: e.passwordResetFlowDeps(),
		Refresh:       e.refreshFlowDeps(),
		Validate:      e.validateFlowDeps(),
		Logout:        e.logoutFlowDeps(),
	})
}

/*
====================================
REPOSITORY ADAPTERS
====================================
*/

// findByEmail turns ErrAccountNotFound into a nil record, which is how the
// flows model absence.
func (e *Engine) findByEmail(ctx context.Context, email string) (*flows.AccountRecord, error) {
	acct, err := e.repository.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec := toRecord(acct)
	return &rec, nil
}

func (e *Engine) findByID(ctx context.Context, id string) (*flows.AccountRecord, error) {
	acct, err := e.repository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec := toRecord(acct)
	return &rec, nil
}

func (e *Engine) update(ctx context.Context, id string, upd AccountUpdate) error {
	_, err := e.repository.Update(ctx, id, upd)
	return err
}

func (e *Engine) markLogin(ctx context.Context, id string, at time.Time) error {
	return e.update(ctx, id, AccountUpdate{LastLoginAt: &at})
}

func toRecord(a *Account) flows.AccountRecord {
	rec := flows.AccountRecord{
		ID:                    a.ID,
		Email:                 a.Email,
		Name:                  a.Name,
		Role:                  a.Role,
		Status:                string(a.Status),
		Provider:              string(a.LoginMethod.Provider),
		PasswordHash:          a.PasswordHash,
		PasswordLogin:         a.LoginMethod.Provider == ProviderPassword,
		EmailVerified:         a.EmailVerified,
		Active:                a.Status == StatusActive,
		ResetOTPHash:          a.ResetOTPHash,
		ExternalSubjectID:     a.ExternalSubjectID,
		PendingProviderSecret: a.PendingProviderSecret,
	}
	if a.ResetOTPExpiresAt != nil {
		rec.ResetOTPExpiresAt = *a.ResetOTPExpiresAt
	}
	if a.LastVerificationSentAt != nil {
		rec.LastVerificationSentAt = *a.LastVerificationSentAt
	}
	if a.LastOTPSentAt != nil {
		rec.LastOTPSentAt = *a.LastOTPSentAt
	}
	return rec
}

func recordView(rec flows.AccountRecord) *AccountView {
	return &AccountView{
		ID:            rec.ID,
		Email:         rec.Email,
		Name:          rec.Name,
		Role:          rec.Role,
		Status:        AccountStatus(rec.Status),
		LoginProvider: LoginProvider(rec.Provider),
		EmailVerified: rec.EmailVerified,
	}
}

/*
====================================
TOKENS
====================================
*/

func (e *Engine) issueAccess(rec flows.AccountRecord) (string, error) {
	token, _, err := e.jwtManager.Issue(jwt.KindAccess, jwt.Spec{
		Subject: rec.ID,
		Email:   rec.Email,
		Role:    rec.Role,
	})
	return token, err
}

func (e *Engine) issueRefresh(rec flows.AccountRecord) (string, error) {
	token, _, err := e.jwtManager.Issue(jwt.KindRefresh, jwt.Spec{Subject: rec.ID})
	return token, err
}

func (e *Engine) issuePair(_ context.Context, rec flows.AccountRecord) (string, string, error) {
	access, err := e.issueAccess(rec)
	if err != nil {
		return "", "", err
	}
	refresh, err := e.issueRefresh(rec)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (e *Engine) parseTokenClaims(kind jwt.Kind) func(string) (flows.TokenClaims, error) {
	return func(token string) (flows.TokenClaims, error) {
		claims, err := e.jwtManager.Parse(kind, token)
		if err != nil {
			return flows.TokenClaims{}, err
		}
		out := flows.TokenClaims{
			TokenID:   claims.ID,
			AccountID: claims.Subject,
			Email:     claims.Email,
			Role:      claims.Role,
			Remaining: e.jwtManager.Remaining(claims),
		}
		if claims.ExpiresAt != nil {
			out.ExpiresAt = claims.ExpiresAt.Time
		}
		return out, nil
	}
}

func (e *Engine) revokeFunc() func(context.Context, string, time.Duration) error {
	if e.revocation == nil {
		return nil
	}
	return e.revocation.Revoke
}

func (e *Engine) isRevokedFunc() func(context.Context, string) (bool, error) {
	if e.revocation == nil {
		return nil
	}
	return e.revocation.IsRevoked
}

// passwordFingerprint names the password a reset token was issued against.
// Any password change produces a different fingerprint.
func passwordFingerprint(hash string) string {
	if hash == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(hash))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}
