package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind names the purpose a token was minted for. Every kind signs with its
// own secret, so a token of one kind never verifies as another.
type Kind string

const (
	KindVerification Kind = "verification"
	KindAccess       Kind = "access"
	KindRefresh      Kind = "refresh"
	KindReset        Kind = "reset"
	KindMFASession   Kind = "mfa_session"
)

// Kinds lists every token kind the manager knows.
var Kinds = []Kind{KindVerification, KindAccess, KindRefresh, KindReset, KindMFASession}

const minSecretBytes = 32

var (
	// ErrUnknownKind is returned for a kind without a configured secret.
	ErrUnknownKind = errors.New("unknown token kind")
	// ErrWrongKind is returned when a token's kind claim does not match the expected kind.
	ErrWrongKind = errors.New("token kind mismatch")
)

// KeyConfig is the secret and lifetime for one token kind.
type KeyConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Config configures a Manager.
type Config struct {
	Keys         map[Kind]KeyConfig
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	Now          func() time.Time
}

// Manager mints and verifies HS256 tokens for each configured kind.
type Manager struct {
	config Config
}

// Claims is the payload shared by all token kinds. Fields that do not apply
// to a kind stay empty.
type Claims struct {
	Kind        Kind   `json:"knd"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	Fingerprint string `json:"fp,omitempty"`
	Handle      string `json:"hdl,omitempty"`
	jwt.RegisteredClaims
}

// Spec carries the per-token values for Issue.
type Spec struct {
	Subject     string
	Email       string
	Role        string
	Fingerprint string
	Handle      string
}

// NewManager validates cfg. Each kind needs a secret of at least 32 bytes,
// no two kinds may share a secret, and every TTL must be positive.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Keys) == 0 {
		return nil, errors.New("no token keys configured")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	seen := make(map[string]Kind, len(cfg.Keys))
	for kind, key := range cfg.Keys {
		if len(key.Secret) < minSecretBytes {
			return nil, fmt.Errorf("%s secret must be at least %d bytes", kind, minSecretBytes)
		}
		if key.TTL <= 0 {
			return nil, fmt.Errorf("%s ttl must be positive", kind)
		}
		if other, dup := seen[string(key.Secret)]; dup {
			return nil, fmt.Errorf("%s and %s share a signing secret", other, kind)
		}
		seen[string(key.Secret)] = kind
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	return &Manager{config: cfg}, nil
}

// TTL returns the configured lifetime of kind, or zero when unknown.
func (m *Manager) TTL(kind Kind) time.Duration {
	return m.config.Keys[kind].TTL
}

// Issue signs a new token of kind and returns it with its generated ID.
func (m *Manager) Issue(kind Kind, spec Spec) (string, *Claims, error) {
	key, ok := m.config.Keys[kind]
	if !ok {
		return "", nil, ErrUnknownKind
	}

	now := m.config.Now()
	claims := &Claims{
		Kind:        kind,
		Email:       spec.Email,
		Role:        spec.Role,
		Fingerprint: spec.Fingerprint,
		Handle:      spec.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   spec.Subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.TTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry, issuer, audience and kind of tokenStr.
func (m *Manager) Parse(kind Kind, tokenStr string) (*Claims, error) {
	key, ok := m.config.Keys[kind]
	if !ok {
		return nil, ErrUnknownKind
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}

	return claims, nil
}

// Remaining returns how long claims stay valid, never negative.
func (m *Manager) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(m.config.Now())
	if d < 0 {
		return 0
	}
	return d
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
