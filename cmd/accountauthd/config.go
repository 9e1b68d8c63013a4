package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/notify"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type config struct {
	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string   `env:"DATABASE_URL"`
	RedisAddr   string   `env:"REDIS_ADDR"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	TrustProxy  bool     `env:"TRUST_PROXY"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTelMetrics  string        `env:"OTEL_METRICS_EXPORTER" envDefault:"none"`
	OTelInterval time.Duration `env:"OTEL_METRIC_EXPORT_INTERVAL" envDefault:"60s"`

	ConfirmEmailURL string `env:"CONFIRM_EMAIL_URL,required,notEmpty"`
	CookieSecure    bool   `env:"COOKIE_SECURE"`
	LoginMode       string `env:"LOGIN_MODE" envDefault:"direct"`
	RefreshRotate   bool   `env:"REFRESH_ROTATE"`

	VerificationSecret string `env:"EMAIL_VERIFICATION_SECRET,required,notEmpty"`
	AccessSecret       string `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	RefreshSecret      string `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	ResetSecret        string `env:"RESET_TOKEN_SECRET,required,notEmpty"`
	MFASessionSecret   string `env:"MFA_SESSION_SECRET,required,notEmpty"`
	OTPSecret          string `env:"OTP_SECRET,required,notEmpty"`
	ProviderSealKey    string `env:"PROVIDER_SEAL_KEY"`

	AWSRegion          string `env:"AWS_REGION"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	CognitoUserPoolID   string `env:"COGNITO_USER_POOL_ID"`
	CognitoClientID     string `env:"COGNITO_CLIENT_ID"`
	CognitoClientSecret string `env:"COGNITO_CLIENT_SECRET"`

	S3Bucket       string `env:"S3_BUCKET"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`
	S3PathStyle    bool   `env:"S3_PATH_STYLE"`

	SMTP notify.SMTPConfig
}

func loadConfig() (config, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	switch accountauth.LoginMode(c.LoginMode) {
	case accountauth.LoginModeDirect:
	case accountauth.LoginModeDelegated:
		if c.CognitoUserPoolID == "" || c.CognitoClientID == "" {
			return errors.New("delegated login needs COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID")
		}
		if c.ProviderSealKey == "" {
			return errors.New("delegated login needs PROVIDER_SEAL_KEY")
		}
	default:
		return fmt.Errorf("LOGIN_MODE must be direct or delegated, got %q", c.LoginMode)
	}
	if (c.CognitoUserPoolID != "" || c.S3Bucket != "") && c.AWSRegion == "" {
		return errors.New("AWS_REGION is required for Cognito and S3")
	}
	if c.RefreshRotate && c.RedisAddr == "" {
		return errors.New("REFRESH_ROTATE needs REDIS_ADDR")
	}
	switch c.OTelMetrics {
	case "none", "":
	case "stdout":
		if c.OTelInterval <= 0 {
			return errors.New("OTEL_METRIC_EXPORT_INTERVAL must be positive")
		}
	default:
		return fmt.Errorf("OTEL_METRICS_EXPORTER must be none or stdout, got %q", c.OTelMetrics)
	}
	return nil
}

// engineConfig maps the environment onto accountauth.Config. Everything not
// named here keeps its default.
func (c config) engineConfig() accountauth.Config {
	cfg := accountauth.DefaultConfig()
	cfg.Tokens.VerificationSecret = []byte(c.VerificationSecret)
	cfg.Tokens.AccessSecret = []byte(c.AccessSecret)
	cfg.Tokens.RefreshSecret = []byte(c.RefreshSecret)
	cfg.Tokens.ResetSecret = []byte(c.ResetSecret)
	cfg.Tokens.MFASessionSecret = []byte(c.MFASessionSecret)
	cfg.OTP.Secret = []byte(c.OTPSecret)
	cfg.Verification.ConfirmURL = c.ConfirmEmailURL
	cfg.Login.Mode = accountauth.LoginMode(c.LoginMode)
	cfg.Refresh.Rotate = c.RefreshRotate
	cfg.Metrics.Enabled = true
	if c.ProviderSealKey != "" {
		cfg.Registration.ProviderSealKey = []byte(c.ProviderSealKey)
	}

	throttles := c.RedisAddr != ""
	cfg.Login.EnableThrottle = throttles
	cfg.Login.EnableIPThrottle = throttles
	cfg.Registration.EnableThrottle = throttles
	cfg.Registration.EnableIPThrottle = throttles
	cfg.PasswordReset.EnableThrottle = throttles
	cfg.PasswordReset.EnableIPThrottle = throttles
	return cfg
}

func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	var logger zerolog.Logger
	switch strings.ToLower(format) {
	case "json", "":
		logger = zerolog.New(os.Stdout)
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	default:
		return zerolog.Logger{}, fmt.Errorf("LOG_FORMAT must be json or console, got %q", format)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "accountauthd").Logger(), nil
}
