package accountauth

import (
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/accountauth/password"
)

// Config holds every tunable of the Engine.
//
// Config values are copied by Builder.WithConfig; later changes to the
// caller's value do not reach a built Engine.
type Config struct {
	Tokens        TokenConfig
	OTP           OTPConfig
	Cooldown      CooldownConfig
	Password      PasswordConfig
	Verification  VerificationConfig
	Login         LoginConfig
	Registration  RegistrationConfig
	PasswordReset PasswordResetConfig
	Refresh       RefreshConfig
	Revocation    RevocationConfig
	Profile       ProfileConfig
	Metrics       MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds one secret and lifetime per token kind. Secrets must be
// at least 32 bytes and pairwise distinct.
type TokenConfig struct {
	Issuer   string
	Audience string
	Leeway   time.Duration

	VerificationSecret []byte
	AccessSecret       []byte
	RefreshSecret      []byte
	ResetSecret        []byte
	MFASessionSecret   []byte

	VerificationTTL time.Duration
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	ResetTTL        time.Duration
	MFASessionTTL   time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls password reset codes. Secret keys the stored digest.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
	Secret []byte
}

// CooldownConfig is the minimum gap between two sends of the same message.
type CooldownConfig struct {
	Verification time.Duration
	OTP          time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and the strength policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	Policy         password.Policy
}

// VerificationConfig controls verification links.
type VerificationConfig struct {
	// ConfirmURL is the page the emailed link points to; the token is added
	// as the token query parameter.
	ConfirmURL string
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginMode selects how a successful password check turns into credentials.
type LoginMode string

const (
	// LoginModeDirect issues the access and refresh pair immediately.
	LoginModeDirect LoginMode = "direct"
	// LoginModeDelegated hands the second factor to the MFA provider.
	LoginModeDelegated LoginMode = "delegated"
)

// LoginConfig controls login behavior and its Redis throttle.
type LoginConfig struct {
	Mode             LoginMode
	EnableThrottle   bool
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
}

// RegistrationConfig controls sign-up.
type RegistrationConfig struct {
	DefaultRole      string
	EnableThrottle   bool
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
	// ProviderSealKey encrypts the temporary provider password held between
	// sign-up and verification in delegated mode. Must be 32 bytes.
	ProviderSealKey []byte
}

// PasswordResetConfig controls the reset OTP throttle.
type PasswordResetConfig struct {
	EnableThrottle    bool
	EnableIPThrottle  bool
	MaxVerifyAttempts int
	Window            time.Duration
}

// RefreshConfig controls refresh token rotation. Rotation needs a
// revocation registry.
type RefreshConfig struct {
	Rotate bool
}

// RevocationConfig controls the Redis denylist created by Builder.WithRedis.
type RevocationConfig struct {
	RedisPrefix string
}

// ProfileConfig controls profile image handling.
type ProfileConfig struct {
	MaxImageBytes int64
	ImageURLTTL   time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with every lifetime and cost set. Secrets
// are left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			Issuer:          "accountauth",
			VerificationTTL: time.Hour,
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			ResetTTL:        10 * time.Minute,
			MFASessionTTL:   5 * time.Minute,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    10 * time.Minute,
		},
		Cooldown: CooldownConfig{
			Verification: 60 * time.Second,
			OTP:          60 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			Policy:         password.DefaultPolicy(),
		},
		Login: LoginConfig{
			Mode:             LoginModeDirect,
			EnableIPThrottle: true,
			MaxAttempts:      5,
			Window:           15 * time.Minute,
		},
		Registration: RegistrationConfig{
			DefaultRole:      "user",
			EnableIPThrottle: true,
			MaxAttempts:      10,
			Window:           time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			EnableIPThrottle:  true,
			MaxVerifyAttempts: 5,
			Window:            10 * time.Minute,
		},
		Revocation: RevocationConfig{
			RedisPrefix: "arv",
		},
		Profile: ProfileConfig{
			MaxImageBytes: 5 << 20,
			ImageURLTTL:   15 * time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.VerificationSecret = cloneBytes(cfg.Tokens.VerificationSecret)
	out.Tokens.AccessSecret = cloneBytes(cfg.Tokens.AccessSecret)
	out.Tokens.RefreshSecret = cloneBytes(cfg.Tokens.RefreshSecret)
	out.Tokens.ResetSecret = cloneBytes(cfg.Tokens.ResetSecret)
	out.Tokens.MFASessionSecret = cloneBytes(cfg.Tokens.MFASessionSecret)
	out.OTP.Secret = cloneBytes(cfg.OTP.Secret)
	out.Registration.ProviderSealKey = cloneBytes(cfg.Registration.ProviderSealKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c for internal consistency. Secret strength and
// distinctness are checked again when the token manager is built.
func (c *Config) Validate() error {
	// Tokens
	if c.Tokens.VerificationTTL <= 0 || c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 ||
		c.Tokens.ResetTTL <= 0 || c.Tokens.MFASessionTTL <= 0 {
		return errors.New("Tokens TTLs must be > 0")
	}
	if c.Tokens.AccessTTL >= c.Tokens.RefreshTTL {
		return errors.New("Tokens AccessTTL must be shorter than RefreshTTL")
	}
	if len(c.Tokens.VerificationSecret) == 0 || len(c.Tokens.AccessSecret) == 0 ||
		len(c.Tokens.RefreshSecret) == 0 || len(c.Tokens.ResetSecret) == 0 ||
		len(c.Tokens.MFASessionSecret) == 0 {
		return errors.New("Tokens secrets are required for every kind")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if len(c.OTP.Secret) < 16 {
		return errors.New("OTP Secret must be at least 16 bytes")
	}

	// Cooldown
	if c.Cooldown.Verification < 0 || c.Cooldown.OTP < 0 {
		return errors.New("Cooldown values must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.Policy.MaxLength > 0 && c.Password.Policy.MaxLength < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxLength must be >= MinLength")
	}

	// Verification
	if c.Verification.ConfirmURL == "" {
		return errors.New("Verification ConfirmURL is required")
	}
	if u, err := url.Parse(c.Verification.ConfirmURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Verification ConfirmURL must be an absolute URL")
	}

	// Login
	switch c.Login.Mode {
	case LoginModeDirect, LoginModeDelegated:
	default:
		return errors.New("Login Mode must be 'direct' or 'delegated'")
	}
	if c.Login.Mode == LoginModeDelegated && len(c.Registration.ProviderSealKey) != 32 {
		return errors.New("Registration ProviderSealKey must be 32 bytes in delegated mode")
	}
	if c.Login.EnableThrottle {
		if c.Login.MaxAttempts <= 0 {
			return errors.New("Login MaxAttempts must be > 0 when throttle is enabled")
		}
		if c.Login.Window <= 0 {
			return errors.New("Login Window must be > 0 when throttle is enabled")
		}
	}

	// Registration
	if c.Registration.EnableThrottle {
		if c.Registration.MaxAttempts <= 0 {
			return errors.New("Registration MaxAttempts must be > 0 when throttle is enabled")
		}
		if c.Registration.Window <= 0 {
			return errors.New("Registration Window must be > 0 when throttle is enabled")
		}
	}

	// Password Reset
	if c.PasswordReset.EnableThrottle {
		if c.PasswordReset.MaxVerifyAttempts <= 0 {
			return errors.New("PasswordReset MaxVerifyAttempts must be > 0 when throttle is enabled")
		}
		if c.PasswordReset.Window <= 0 {
			return errors.New("PasswordReset Window must be > 0 when throttle is enabled")
		}
	}

	// Profile
	if c.Profile.MaxImageBytes <= 0 {
		return errors.New("Profile MaxImageBytes must be > 0")
	}
	if c.Profile.ImageURLTTL <= 0 || c.Profile.ImageURLTTL > 7*24*time.Hour {
		return errors.New("Profile ImageURLTTL must be within (0, 7d]")
	}

	return nil
}
