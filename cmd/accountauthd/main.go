// Command accountauthd serves the account engine over HTTP.
//
// Configuration comes from the environment, optionally seeded from a .env
// file in the working directory. Without DATABASE_URL accounts live in
// memory; without REDIS_ADDR throttles and token revocation are off; without
// SMTP_HOST outgoing mail is written to the log. OTEL_METRICS_EXPORTER=stdout
// additionally pushes engine metrics through OpenTelemetry.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/httpapi"
	"github.com/MrEthical07/accountauth/internal/awsx"
	"github.com/MrEthical07/accountauth/metrics/export/prometheus"
	"github.com/MrEthical07/accountauth/mfa/cognito"
	"github.com/MrEthical07/accountauth/notify"
	"github.com/MrEthical07/accountauth/repository/memory"
	"github.com/MrEthical07/accountauth/repository/postgres"
	"github.com/MrEthical07/accountauth/storage/s3"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	envFileErr := godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("invalid logger configuration")
	}
	if envFileErr != nil {
		logger.Debug().Msg("no .env file found, relying on process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger); err != nil {
		logger.Fatal().Err(err).Msg("accountauthd stopped")
	}
}

func run(ctx context.Context, cfg config, logger *zerolog.Logger) error {
	builder := accountauth.New().
		WithConfig(cfg.engineConfig()).
		WithLogger(*logger)

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer closeDB(db, logger)
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		builder.WithRepository(postgres.NewAccounts(db))
		logger.Info().Msg("using postgres account repository")
	} else {
		builder.WithRepository(memory.New())
		logger.Warn().Msg("DATABASE_URL not set, accounts are kept in memory")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		builder.WithRedis(rdb)
	}

	if cfg.SMTP.Host != "" {
		mailer, err := notify.NewSMTPDispatcher(cfg.SMTP)
		if err != nil {
			return err
		}
		builder.WithNotifier(mailer)
	} else {
		builder.WithNotifier(notify.NewLogDispatcher(logger))
		logger.Warn().Msg("SMTP_HOST not set, emails are written to the log")
	}

	if cfg.AWSRegion != "" {
		awsCfg, err := awsx.Load(ctx, awsx.Options{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return err
		}
		if cfg.CognitoUserPoolID != "" {
			provider, err := cognito.NewFromConfig(awsCfg, cognito.Config{
				UserPoolID:   cfg.CognitoUserPoolID,
				ClientID:     cfg.CognitoClientID,
				ClientSecret: cfg.CognitoClientSecret,
			})
			if err != nil {
				return err
			}
			builder.WithMFAProvider(provider)
		}
		if cfg.S3Bucket != "" {
			store, err := s3.New(awsCfg, s3.Config{
				Bucket:       cfg.S3Bucket,
				BaseEndpoint: cfg.S3BaseEndpoint,
				UsePathStyle: cfg.S3PathStyle,
			})
			if err != nil {
				return err
			}
			builder.WithObjectStore(store)
		}
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}

	if cfg.OTelMetrics == "stdout" {
		pipeline, err := startOTel(engine, os.Stderr, cfg.OTelInterval)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pipeline.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("otel metrics shutdown failed")
			}
		}()
		logger.Info().Dur("interval", cfg.OTelInterval).Msg("exporting otel metrics to stderr")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Engine:         engine,
			Logger:         logger,
			CookieSecure:   cfg.CookieSecure,
			AllowedOrigins: cfg.CORSOrigins,
			TrustProxy:     cfg.TrustProxy,
			Metrics:        prometheus.NewPrometheusExporter(engine).Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Str("login_mode", string(engine.LoginMode())).
			Msg("http server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func closeDB(db *sql.DB, logger *zerolog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn().Err(err).Msg("database close failed")
	}
}
