package accountauth

import (
	"context"
)

// SuspendAccount blocks an account from logging in and refreshing. Accounts
// are never deleted; suspending an already suspended account is a no-op.
func (e *Engine) SuspendAccount(ctx context.Context, id string) (*AccountView, error) {
	return e.setAccountStatus(ctx, id, StatusSuspended)
}

// ReactivateAccount returns a suspended or inactive account to active. An
// account whose email was never verified cannot be reactivated and stays
// invited until verification.
func (e *Engine) ReactivateAccount(ctx context.Context, id string) (*AccountView, error) {
	acct, err := e.account(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acct.EmailVerified {
		return nil, conflictError("email not verified")
	}
	return e.setAccountStatus(ctx, acct.ID, StatusActive)
}

func (e *Engine) setAccountStatus(ctx context.Context, id string, status AccountStatus) (*AccountView, error) {
	current, err := e.account(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current.view(), nil
	}

	updated, err := e.repository.Update(ctx, current.ID, AccountUpdate{Status: &status})
	if err != nil {
		return nil, repositoryError(err)
	}
	e.logger.Info().
		Str("account_id", updated.ID).
		Str("from", string(current.Status)).
		Str("to", string(status)).
		Msg("account status changed")
	return updated.view(), nil
}
