package accountauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/accountauth/internal/limiters"
	"github.com/MrEthical07/accountauth/internal/rate"
	"github.com/MrEthical07/accountauth/internal/sealer"
	"github.com/MrEthical07/accountauth/internal/stores"
	"github.com/MrEthical07/accountauth/jwt"
	"github.com/MrEthical07/accountauth/password"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	repository AccountRepository
	notifier   Notifier
	mfa        MFAProvider
	objects    ObjectStore
	revocation RevocationRegistry

	logger *zerolog.Logger
	now    func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis backed throttles and, unless a registry is
// set explicitly, the Redis revocation denylist.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithRepository(repo AccountRepository) *Builder {
	b.repository = repo
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithMFAProvider sets the external identity provider used in delegated
// login mode.
func (b *Builder) WithMFAProvider(p MFAProvider) *Builder {
	b.mfa = p
	return b
}

// WithObjectStore enables profile image upload and download.
func (b *Builder) WithObjectStore(s ObjectStore) *Builder {
	b.objects = s
	return b
}

// WithRevocationRegistry sets the token denylist. It takes precedence over
// the one derived from WithRedis.
func (b *Builder) WithRevocationRegistry(r RevocationRegistry) *Builder {
	b.revocation = r
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

// WithClock overrides time.Now. Tests use it to drive cooldowns and
// expiries.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and the collaborators and returns a
// ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.repository == nil {
		return nil, errors.New("account repository required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if cfg.Login.Mode == LoginModeDelegated && b.mfa == nil {
		return nil, errors.New("delegated login mode requires an MFA provider")
	}
	if b.redis == nil {
		if cfg.Login.EnableThrottle {
			return nil, errors.New("Login throttle requires redis client")
		}
		if cfg.Registration.EnableThrottle {
			return nil, errors.New("Registration throttle requires redis client")
		}
		if cfg.PasswordReset.EnableThrottle {
			return nil, errors.New("PasswordReset throttle requires redis client")
		}
	}

	revocation := b.revocation
	if revocation == nil && b.redis != nil {
		revocation = stores.NewRevocationStore(b.redis, cfg.Revocation.RedisPrefix)
	}
	if cfg.Refresh.Rotate && revocation == nil {
		return nil, errors.New("Refresh Rotate requires a revocation registry")
	}

	logger := b.logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		repository: b.repository,
		notifier:   b.notifier,
		mfa:        b.mfa,
		objects:    b.objects,
		revocation: revocation,
		logger:     logger,
		now:        now,
		metrics:    NewMetrics(cfg.Metrics),
	}

	// -------- THROTTLES --------
	if b.redis != nil {
		if cfg.Login.EnableThrottle {
			engine.rateLimiter = rate.New(b.redis, rate.Config{
				EnableIPThrottle:      cfg.Login.EnableIPThrottle,
				MaxLoginAttempts:      cfg.Login.MaxAttempts,
				LoginCooldownDuration: cfg.Login.Window,
			})
		}
		if cfg.Registration.EnableThrottle {
			engine.registrationLimiter = limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
				EnableIdentifierThrottle: true,
				EnableIPThrottle:         cfg.Registration.EnableIPThrottle,
				MaxAttempts:              cfg.Registration.MaxAttempts,
				Window:                   cfg.Registration.Window,
			})
		}
		if cfg.PasswordReset.EnableThrottle {
			engine.resetLimiter = limiters.NewResetOTPLimiter(b.redis, limiters.ResetOTPConfig{
				EnableIdentifierThrottle: true,
				EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
				MaxAttempts:              cfg.PasswordReset.MaxVerifyAttempts,
				Window:                   cfg.PasswordReset.Window,
			})
		}
	}

	// -------- CODECS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		Keys: map[jwt.Kind]jwt.KeyConfig{
			jwt.KindVerification: {Secret: cloneBytes(cfg.Tokens.VerificationSecret), TTL: cfg.Tokens.VerificationTTL},
			jwt.KindAccess:       {Secret: cloneBytes(cfg.Tokens.AccessSecret), TTL: cfg.Tokens.AccessTTL},
			jwt.KindRefresh:      {Secret: cloneBytes(cfg.Tokens.RefreshSecret), TTL: cfg.Tokens.RefreshTTL},
			jwt.KindReset:        {Secret: cloneBytes(cfg.Tokens.ResetSecret), TTL: cfg.Tokens.ResetTTL},
			jwt.KindMFASession:   {Secret: cloneBytes(cfg.Tokens.MFASessionSecret), TTL: cfg.Tokens.MFASessionTTL},
		},
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		Leeway:   cfg.Tokens.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	if cfg.Login.Mode == LoginModeDelegated {
		s, err := sealer.New(cfg.Registration.ProviderSealKey)
		if err != nil {
			return nil, err
		}
		engine.sealer = s
		engine.issuer = delegatedIssuer{engine: engine, provider: b.mfa}
	} else {
		engine.issuer = directIssuer{engine: engine}
	}

	engine.flows = newFlowService(engine)

	b.built = true
	return engine, nil
}
