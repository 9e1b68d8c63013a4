package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.FindByEmail != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*AccountRecord, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error) {
	return RunVerifyEmail(ctx, token, s.deps.Verification)
}

func (s Service) ResendVerification(ctx context.Context, email string) error {
	return RunResendVerification(ctx, email, s.deps.Verification)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) CompleteMFA(ctx context.Context, req CompleteMFARequest) (*LoginResult, error) {
	return RunCompleteMFA(ctx, req, s.deps.MFA)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) ResendOTP(ctx context.Context, email string) error {
	return RunResendOTP(ctx, email, s.deps.PasswordReset)
}

func (s Service) VerifyPasswordResetOTP(ctx context.Context, email, code string) (string, error) {
	return RunVerifyPasswordResetOTP(ctx, email, code, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return RunResetPassword(ctx, req, s.deps.PasswordReset)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) ValidateAccess(ctx context.Context, accessToken string) (*TokenClaims, error) {
	return RunValidateAccess(ctx, accessToken, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, refreshToken, accessToken string) {
	RunLogout(ctx, refreshToken, accessToken, s.deps.Logout)
}
