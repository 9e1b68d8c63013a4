package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/accountauth"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *Accounts) *accountauth.Account {
	t.Helper()
	a, err := r.Create(context.Background(), accountauth.NewAccount{
		ID:           "acc-1",
		Email:        "a@example.com",
		PasswordHash: "$argon2id$stub",
		LoginMethod:  accountauth.LoginMethod{Provider: accountauth.ProviderPassword},
		Status:       accountauth.StatusInvited,
	})
	require.NoError(t, err)
	return a
}

func TestCreateAndFind(t *testing.T) {
	r := New()
	ctx := context.Background()
	created := seed(t, r)

	byEmail, err := r.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byID, err := r.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", byID.Email)
	require.False(t, byID.CreatedAt.IsZero())

	_, err = r.FindByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, accountauth.ErrAccountNotFound)
	_, err = r.FindByID(ctx, "missing")
	require.ErrorIs(t, err, accountauth.ErrAccountNotFound)
}

func TestCreateDuplicateEmail(t *testing.T) {
	r := New()
	seed(t, r)

	_, err := r.Create(context.Background(), accountauth.NewAccount{ID: "acc-2", Email: "a@example.com"})
	require.ErrorIs(t, err, accountauth.ErrDuplicateEmail)
	require.Equal(t, 1, r.Len())
}

func TestReturnedAccountsAreCopies(t *testing.T) {
	r := New()
	a := seed(t, r)
	a.Email = "mutated@example.com"

	got, err := r.FindByID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", got.Email)
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New().WithClock(func() time.Time { return now })
	seed(t, r)
	ctx := context.Background()

	verified := true
	status := accountauth.StatusActive
	got, err := r.Update(ctx, "acc-1", accountauth.AccountUpdate{EmailVerified: &verified, Status: &status})
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
	require.Equal(t, accountauth.StatusActive, got.Status)
	require.Equal(t, "$argon2id$stub", got.PasswordHash)
	require.Equal(t, now, got.UpdatedAt)

	_, err = r.Update(ctx, "missing", accountauth.AccountUpdate{})
	require.ErrorIs(t, err, accountauth.ErrAccountNotFound)
}

func TestResetOTPSetAndClearTogether(t *testing.T) {
	r := New()
	seed(t, r)
	ctx := context.Background()
	exp := time.Now().Add(10 * time.Minute)

	got, err := r.Update(ctx, "acc-1", accountauth.AccountUpdate{ResetOTP: &accountauth.ResetOTP{Hash: "h1", ExpiresAt: exp}})
	require.NoError(t, err)
	require.Equal(t, "h1", got.ResetOTPHash)
	require.NotNil(t, got.ResetOTPExpiresAt)

	got, err = r.Update(ctx, "acc-1", accountauth.AccountUpdate{ClearResetOTP: true})
	require.NoError(t, err)
	require.Empty(t, got.ResetOTPHash)
	require.Nil(t, got.ResetOTPExpiresAt)
}

func TestConditionalUpdateOnOTPHash(t *testing.T) {
	r := New()
	seed(t, r)
	ctx := context.Background()

	_, err := r.Update(ctx, "acc-1", accountauth.AccountUpdate{ResetOTP: &accountauth.ResetOTP{Hash: "h1", ExpiresAt: time.Now().Add(time.Minute)}})
	require.NoError(t, err)

	stale := "h0"
	_, err = r.Update(ctx, "acc-1", accountauth.AccountUpdate{ClearResetOTP: true, IfResetOTPHash: &stale})
	require.ErrorIs(t, err, accountauth.ErrStaleAccount)

	current := "h1"
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Update(ctx, "acc-1", accountauth.AccountUpdate{ClearResetOTP: true, IfResetOTPHash: &current}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
