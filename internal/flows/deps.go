package flows

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AccountRecord is the flow-local view of a stored account.
type AccountRecord struct {
	ID                     string
	Email                  string
	Name                   string
	Role                   string
	Status                 string
	Provider               string
	PasswordHash           string
	PasswordLogin          bool
	EmailVerified          bool
	Active                 bool
	ResetOTPHash           string
	ResetOTPExpiresAt      time.Time
	LastVerificationSentAt time.Time
	LastOTPSentAt          time.Time
	ExternalSubjectID      string
	PendingProviderSecret  string
}

// ProviderTokens are the credentials an external identity provider issued.
type ProviderTokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int32
}

// Errors builds host-level errors for each failure class. Every flow gets the
// same set so results map onto one taxonomy.
type Errors struct {
	Validation       func(msg string) error
	Conflict         func(msg string) error
	Unauthorized     func(msg string) error
	Forbidden        func(msg string) error
	NotFound         func(msg string) error
	RateLimited      func(msg string, retryAfter time.Duration) error
	InvalidOrExpired func(msg string, status int) error
	Delivery         func(err error) error
	Internal         func(err error) error
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register      RegisterDeps
	Verification  VerificationDeps
	Login         LoginDeps
	MFA           MFADeps
	PasswordReset PasswordResetDeps
	Refresh       RefreshDeps
	Validate      ValidateDeps
	Logout        LogoutDeps
}

var errNotReady = errors.New("flow dependencies not wired")

const (
	// InvalidCredentialsMessage is returned for every failed password login,
	// whichever check failed.
	InvalidCredentialsMessage = "invalid email or password"
	accountNotFoundMessage    = "account not found"
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func plausibleEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != "" && !strings.ContainsAny(domain, "@ ")
}

// cooldownRemaining returns how much of cooldown is left since last, or zero
// when the window has passed or nothing was ever sent.
func cooldownRemaining(last, now time.Time, cooldown time.Duration) time.Duration {
	if last.IsZero() || cooldown <= 0 {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= cooldown {
		return 0
	}
	if elapsed < 0 {
		return cooldown
	}
	return cooldown - elapsed
}

// ceilSeconds rounds d up to a whole number of seconds, never below one.
func ceilSeconds(d time.Duration) time.Duration {
	secs := math.Ceil(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func nopLogger(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}

func noopMetric(f func(int)) func(int) {
	if f != nil {
		return f
	}
	return func(int) {}
}

func clientIP(f func(context.Context) string, ctx context.Context) string {
	if f == nil {
		return ""
	}
	return f(ctx)
}
