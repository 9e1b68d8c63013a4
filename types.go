package accountauth

import (
	"context"
	"io"
	"time"
)

// AccountStatus is the lifecycle state of an account. Accounts are suspended,
// never deleted.
type AccountStatus string

const (
	StatusInvited   AccountStatus = "invited"
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusInvited, StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// LoginProvider names how an account signs in.
type LoginProvider string

const (
	ProviderPassword LoginProvider = "password"
	ProviderGoogle   LoginProvider = "google"
	ProviderGitHub   LoginProvider = "github"
)

// Valid reports whether p is a known provider.
func (p LoginProvider) Valid() bool {
	switch p {
	case ProviderPassword, ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// LoginMethod describes the sign-in method of an account.
type LoginMethod struct {
	Provider LoginProvider
}

// Account is the stored identity record.
//
// PasswordHash is set exactly when LoginMethod.Provider is ProviderPassword.
// ResetOTPHash and ResetOTPExpiresAt are set and cleared together.
type Account struct {
	ID                     string
	Email                  string
	Name                   string
	Role                   string
	PasswordHash           string
	LoginMethod            LoginMethod
	EmailVerified          bool
	Status                 AccountStatus
	RecoveryEmail          string
	ProfileImageKey        string
	ExternalSubjectID      string
	PendingProviderSecret  string
	ResetOTPHash           string
	ResetOTPExpiresAt      *time.Time
	LastVerificationSentAt *time.Time
	LastOTPSentAt          *time.Time
	LastLoginAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewAccount is the input to AccountRepository.Create.
type NewAccount struct {
	ID                    string
	Email                 string
	Name                  string
	Role                  string
	PasswordHash          string
	LoginMethod           LoginMethod
	Status                AccountStatus
	PendingProviderSecret string
	CreatedAt             time.Time
}

// ResetOTP is a stored reset code digest and its expiry.
type ResetOTP struct {
	Hash      string
	ExpiresAt time.Time
}

// AccountUpdate is a partial update. Nil fields are left untouched.
//
// IfResetOTPHash, when set, makes the update conditional on the stored OTP
// digest still being that value; repositories return ErrStaleAccount when it
// is not.
type AccountUpdate struct {
	Name                       *string
	PasswordHash               *string
	EmailVerified              *bool
	Status                     *AccountStatus
	RecoveryEmail              *string
	ProfileImageKey            *string
	ExternalSubjectID          *string
	ClearPendingProviderSecret bool
	ResetOTP                   *ResetOTP
	ClearResetOTP              bool
	LastVerificationSentAt     *time.Time
	LastOTPSentAt              *time.Time
	LastLoginAt                *time.Time

	IfResetOTPHash *string
}

// Apply writes u onto a. Repositories that hold accounts in memory share it
// so every backend agrees on field semantics.
func (u AccountUpdate) Apply(a *Account) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.EmailVerified != nil {
		a.EmailVerified = *u.EmailVerified
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.RecoveryEmail != nil {
		a.RecoveryEmail = *u.RecoveryEmail
	}
	if u.ProfileImageKey != nil {
		a.ProfileImageKey = *u.ProfileImageKey
	}
	if u.ExternalSubjectID != nil {
		a.ExternalSubjectID = *u.ExternalSubjectID
	}
	if u.ClearPendingProviderSecret {
		a.PendingProviderSecret = ""
	}
	if u.ClearResetOTP {
		a.ResetOTPHash = ""
		a.ResetOTPExpiresAt = nil
	}
	if u.ResetOTP != nil {
		a.ResetOTPHash = u.ResetOTP.Hash
		at := u.ResetOTP.ExpiresAt
		a.ResetOTPExpiresAt = &at
	}
	if u.LastVerificationSentAt != nil {
		at := *u.LastVerificationSentAt
		a.LastVerificationSentAt = &at
	}
	if u.LastOTPSentAt != nil {
		at := *u.LastOTPSentAt
		a.LastOTPSentAt = &at
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		a.LastLoginAt = &at
	}
}

// RegisterInput is the sign-up request. Password is required when the login
// provider is ProviderPassword, which is the default.
type RegisterInput struct {
	Email       string
	Name        string
	Password    string
	LoginMethod LoginMethod
}

// RegisterResult acknowledges a sign-up. No credential is issued.
type RegisterResult struct {
	AccountID string
	Message   string
}

// VerifyResult reports a completed email verification.
type VerifyResult struct {
	AccountID       string
	AlreadyVerified bool
	Message         string
}

// ProviderTokens are tokens issued by the external identity provider.
type ProviderTokens struct {
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int32  `json:"expiresIn"`
}

// ChallengeResult is returned by MFAProvider.InitiateChallenge. Either
// Challenge and Session are set, or Tokens when the provider needs no
// further step.
type ChallengeResult struct {
	Challenge string
	Session   string
	Tokens    *ProviderTokens
}

// LoginResult is the outcome of Login or CompleteMFA.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	MFARequired  bool
	Challenge    string
	Session      string
	Provider     *ProviderTokens
	Account      *AccountView
}

// CompleteMFAInput answers a pending MFA challenge.
type CompleteMFAInput struct {
	Session   string
	Challenge string
	Code      string
	Email     string
}

// ResetPasswordInput is the last step of a password reset. Email, when set,
// must match the address the token was issued for.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
	Email       string
}

// RefreshResult carries a new access token. RefreshToken is only set when
// rotation is enabled.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Principal is the identity behind a valid access token.
type Principal struct {
	AccountID string
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// AccountView is the public projection of an account. It never carries
// secrets.
type AccountView struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	Name            string        `json:"name,omitempty"`
	Role            string        `json:"role,omitempty"`
	Status          AccountStatus `json:"status"`
	LoginProvider   LoginProvider `json:"loginProvider"`
	EmailVerified   bool          `json:"emailVerified"`
	RecoveryEmail   string        `json:"recoveryEmail,omitempty"`
	HasProfileImage bool          `json:"hasProfileImage"`
	LastLoginAt     *time.Time    `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// ProfileUpdate is a partial profile change.
type ProfileUpdate struct {
	Name *string
}

// AccountRepository persists accounts. Implementations must be safe for
// concurrent use.
type AccountRepository interface {
	// FindByEmail returns ErrAccountNotFound when no account has email.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// FindByID returns ErrAccountNotFound when no account has id.
	FindByID(ctx context.Context, id string) (*Account, error)
	// Create returns ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, in NewAccount) (*Account, error)
	// Update applies a partial update and returns the stored result. It
	// returns ErrAccountNotFound for an unknown id and ErrStaleAccount when
	// IfResetOTPHash does not match.
	Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error)
}

// Notifier delivers a rendered message.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MFAProvider is an external identity provider that owns the second factor.
type MFAProvider interface {
	InitiateChallenge(ctx context.Context, email, password string) (*ChallengeResult, error)
	CompleteChallenge(ctx context.Context, email, session, challenge, code string) (*ProviderTokens, error)
	ProvisionIdentity(ctx context.Context, email, temporaryPassword string) (string, error)
}

// ObjectStore holds binary objects such as profile images.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// RevocationRegistry is a denylist of token IDs.
type RevocationRegistry interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

func (a *Account) view() *AccountView {
	if a == nil {
		return nil
	}
	return &AccountView{
		ID:              a.ID,
		Email:           a.Email,
		Name:            a.Name,
		Role:            a.Role,
		Status:          a.Status,
		LoginProvider:   a.LoginMethod.Provider,
		EmailVerified:   a.EmailVerified,
		RecoveryEmail:   a.RecoveryEmail,
		HasProfileImage: a.ProfileImageKey != "",
		LastLoginAt:     a.LastLoginAt,
		CreatedAt:       a.CreatedAt,
	}
}
