package accountauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accountauth/internal/flows"
	"github.com/MrEthical07/accountauth/internal/limiters"
	"github.com/MrEthical07/accountauth/internal/mailtmpl"
	"github.com/MrEthical07/accountauth/jwt"
	"github.com/google/uuid"
)

const registeredMessage = "registration successful, check your email to verify your account"

// Register creates an unverified account and mails its verification link.
//
// An existing address fails with ErrConflict: "already registered" when it
// is verified, "pending verification" when it is not. When the account was
// stored but the email could not be sent, the result is returned together
// with an error of kind Delivery.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}

	provider := in.LoginMethod.Provider
	if provider == "" {
		provider = ProviderPassword
	}
	if !provider.Valid() {
		return nil, validationError("unsupported login provider")
	}

	rec, err := e.flows.Register(ctx, flows.RegisterRequest{
		Email:         in.Email,
		Name:          in.Name,
		Password:      in.Password,
		Provider:      string(provider),
		PasswordLogin: provider == ProviderPassword,
	})
	if rec == nil {
		return nil, err
	}
	return &RegisterResult{AccountID: rec.ID, Message: registeredMessage}, err
}

func (e *Engine) registerFlowDeps() flows.RegisterDeps {
	deps := flows.RegisterDeps{
		Delegated:           e.config.Login.Mode == LoginModeDelegated,
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, limiters.ErrRegistrationRateLimited)
		},
		CheckPasswordPolicy: e.config.Password.Policy.Check,
		HashPassword:        e.passwordHash.Hash,
		FindByEmail:         e.findByEmail,
		CreateAccount:       e.createAccount,
		IsDuplicate: func(err error) bool {
			return errors.Is(err, ErrDuplicateEmail)
		},
		VerificationLink:     e.verificationLink,
		SendVerification:     e.sendVerification,
		MarkVerificationSent: e.markVerificationSent,
		MetricInc:            e.flowMetricInc,
		Logger:               e.logger,
		Metrics: flows.RegisterMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterConflict:    int(MetricRegisterConflict),
			RegisterRateLimited: int(MetricRegisterRateLimited),
			NotificationFailure: int(MetricNotificationFailure),
		},
		Errors: flowErrors(),
	}
	if e.registrationLimiter != nil {
		deps.CheckRate = e.registrationLimiter.Enforce
	}
	if e.sealer != nil {
		deps.SealSecret = e.sealer.Seal
	}
	return deps
}

func (e *Engine) createAccount(ctx context.Context, rec flows.NewAccountRecord) (*flows.AccountRecord, error) {
	acct, err := e.repository.Create(ctx, NewAccount{
		ID:                    uuid.NewString(),
		Email:                 rec.Email,
		Name:                  rec.Name,
		Role:                  e.config.Registration.DefaultRole,
		PasswordHash:          rec.PasswordHash,
		LoginMethod:           LoginMethod{Provider: LoginProvider(rec.Provider)},
		Status:                StatusInvited,
		PendingProviderSecret: rec.PendingProviderSecret,
		CreatedAt:             e.now(),
	})
	if err != nil {
		return nil, err
	}
	out := toRecord(acct)
	return &out, nil
}

func (e *Engine) verificationLink(rec flows.AccountRecord) (string, error) {
	token, _, err := e.jwtManager.Issue(jwt.KindVerification, jwt.Spec{
		Subject: rec.ID,
		Email:   rec.Email,
	})
	if err != nil {
		return "", err
	}
	return mailtmpl.VerificationLink(e.config.Verification.ConfirmURL, token)
}

func (e *Engine) sendVerification(ctx context.Context, rec flows.AccountRecord, link string) error {
	body, err := mailtmpl.Verification(rec.Name, link, e.config.Tokens.VerificationTTL)
	if err != nil {
		return err
	}
	return e.notifier.Send(ctx, rec.Email, mailtmpl.VerificationSubject, body)
}

func (e *Engine) markVerificationSent(ctx context.Context, id string, at time.Time) error {
	return e.update(ctx, id, AccountUpdate{LastVerificationSentAt: &at})
}
