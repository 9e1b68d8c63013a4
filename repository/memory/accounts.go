// Package memory is an in-process AccountRepository. It backs tests and
// single-instance deployments without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/accountauth"
)

// Accounts holds accounts in maps guarded by one mutex. Conditional updates
// are checked and applied under the same lock.
type Accounts struct {
	mu      sync.RWMutex
	byID    map[string]*accountauth.Account
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty repository.
func New() *Accounts {
	return &Accounts{
		byID:    make(map[string]*accountauth.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for UpdatedAt.
func (r *Accounts) WithClock(now func() time.Time) *Accounts {
	r.now = now
	return r
}

func (r *Accounts) FindByEmail(_ context.Context, email string) (*accountauth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, accountauth.ErrAccountNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *Accounts) FindByID(_ context.Context, id string) (*accountauth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, accountauth.ErrAccountNotFound
	}
	return clone(a), nil
}

func (r *Accounts) Create(_ context.Context, in accountauth.NewAccount) (*accountauth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[in.Email]; taken {
		return nil, accountauth.ErrDuplicateEmail
	}
	if _, taken := r.byID[in.ID]; taken {
		return nil, accountauth.ErrDuplicateEmail
	}

	created := in.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	a := &accountauth.Account{
		ID:                    in.ID,
		Email:                 in.Email,
		Name:                  in.Name,
		Role:                  in.Role,
		PasswordHash:          in.PasswordHash,
		LoginMethod:           in.LoginMethod,
		Status:                in.Status,
		PendingProviderSecret: in.PendingProviderSecret,
		CreatedAt:             created,
		UpdatedAt:             created,
	}
	r.byID[a.ID] = a
	r.byEmail[a.Email] = a.ID
	return clone(a), nil
}

// Update applies upd to the stored account. With IfResetOTPHash set the
// write happens only if the stored digest still matches.
func (r *Accounts) Update(_ context.Context, id string, upd accountauth.AccountUpdate) (*accountauth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, accountauth.ErrAccountNotFound
	}
	if upd.IfResetOTPHash != nil && a.ResetOTPHash != *upd.IfResetOTPHash {
		return nil, accountauth.ErrStaleAccount
	}

	upd.Apply(a)
	a.UpdatedAt = r.now()
	return clone(a), nil
}

// Len reports how many accounts are stored.
func (r *Accounts) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func clone(a *accountauth.Account) *accountauth.Account {
	c := *a
	c.ResetOTPExpiresAt = cloneTime(a.ResetOTPExpiresAt)
	c.LastVerificationSentAt = cloneTime(a.LastVerificationSentAt)
	c.LastOTPSentAt = cloneTime(a.LastOTPSentAt)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ accountauth.AccountRepository = (*Accounts)(nil)
