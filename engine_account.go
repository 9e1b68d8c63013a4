package accountauth

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/MrEthical07/accountauth/internal/flows"
)

var profileImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// GetAccount returns the public view of the account with id.
func (e *Engine) GetAccount(ctx context.Context, id string) (*AccountView, error) {
	acct, err := e.account(ctx, id)
	if err != nil {
		return nil, err
	}
	return acct.view(), nil
}

// GetAccountByEmail returns the public view of the account registered with
// email.
func (e *Engine) GetAccountByEmail(ctx context.Context, email string) (*AccountView, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	email = flows.NormalizeEmail(email)
	if email == "" {
		return nil, validationError("email is required")
	}
	acct, err := e.repository.FindByEmail(ctx, email)
	if err != nil {
		return nil, repositoryError(err)
	}
	return acct.view(), nil
}

// UpdateProfile applies a partial profile change.
func (e *Engine) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*AccountView, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	if upd.Name == nil {
		return nil, validationError("nothing to update")
	}
	name := strings.TrimSpace(*upd.Name)
	if name == "" {
		return nil, validationError("name must not be empty")
	}
	if _, err := e.activeAccount(ctx, id); err != nil {
		return nil, err
	}
	acct, err := e.repository.Update(ctx, id, AccountUpdate{Name: &name})
	if err != nil {
		return nil, repositoryError(err)
	}
	return acct.view(), nil
}

// ChangePassword replaces the password of a signed-in account after
// checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, id, current, next, confirm string) error {
	if current == "" || next == "" {
		return validationError("current and new password are required")
	}
	if next != confirm {
		return validationError("passwords do not match")
	}
	if next == current {
		return validationError("new password must differ from the current password")
	}
	if err := e.config.Password.Policy.Check(next); err != nil {
		return validationError(err.Error())
	}

	acct, err := e.activeAccount(ctx, id)
	if err != nil {
		return err
	}
	if acct.LoginMethod.Provider != ProviderPassword || acct.PasswordHash == "" {
		return validationError("account does not use password login")
	}

	ok, err := e.passwordHash.Verify(current, acct.PasswordHash)
	if err != nil {
		return internalError(err)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return unauthorizedError("current password is incorrect")
	}

	hash, err := e.passwordHash.Hash(next)
	if err != nil {
		return internalError(err)
	}
	if _, err := e.repository.Update(ctx, acct.ID, AccountUpdate{PasswordHash: &hash, ClearResetOTP: true}); err != nil {
		return repositoryError(err)
	}
	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

// UpdateRecoveryEmail sets the secondary address. It must differ from the
// login email.
func (e *Engine) UpdateRecoveryEmail(ctx context.Context, id, email string) (*AccountView, error) {
	email = flows.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid recovery email is required")
	}
	acct, err := e.activeAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Email == email {
		return nil, validationError("recovery email must differ from the primary email")
	}
	updated, err := e.repository.Update(ctx, acct.ID, AccountUpdate{RecoveryEmail: &email})
	if err != nil {
		return nil, repositoryError(err)
	}
	return updated.view(), nil
}

// UploadProfileImage stores an image under user/profilepics/{id}{ext} and
// returns the object key. The content type follows the file extension.
func (e *Engine) UploadProfileImage(ctx context.Context, id, filename string, body io.Reader, size int64) (string, error) {
	if e == nil || e.objects == nil {
		return "", internalError(errors.New("object store not configured"))
	}
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := profileImageTypes[ext]
	if !ok {
		return "", &Error{Kind: KindValidation, Message: "only jpeg, png, gif and webp images are allowed", Err: ErrProfileImageType}
	}
	if size <= 0 {
		return "", validationError("image is empty")
	}
	if size > e.config.Profile.MaxImageBytes {
		return "", validationError("image is too large")
	}

	acct, err := e.activeAccount(ctx, id)
	if err != nil {
		return "", err
	}

	key := "user/profilepics/" + acct.ID + ext
	if err := e.objects.Put(ctx, key, contentType, io.LimitReader(body, size), size); err != nil {
		e.logger.Error().Err(err).Str("account_id", acct.ID).Msg("profile image upload failed")
		return "", internalError(err)
	}
	if _, err := e.repository.Update(ctx, acct.ID, AccountUpdate{ProfileImageKey: &key}); err != nil {
		return "", repositoryError(err)
	}
	return key, nil
}

// ProfileImageURL returns a time-limited download URL for the account's
// profile image.
func (e *Engine) ProfileImageURL(ctx context.Context, id string) (string, error) {
	if e == nil || e.objects == nil {
		return "", internalError(errors.New("object store not configured"))
	}
	acct, err := e.account(ctx, id)
	if err != nil {
		return "", err
	}
	if acct.ProfileImageKey == "" {
		return "", notFoundError("no profile image")
	}
	url, err := e.objects.PresignGet(ctx, acct.ProfileImageKey, e.config.Profile.ImageURLTTL)
	if err != nil {
		return "", internalError(err)
	}
	return url, nil
}

func (e *Engine) account(ctx context.Context, id string) (*Account, error) {
	if !e.ready() {
		return nil, internalError(ErrEngineNotReady)
	}
	if id == "" {
		return nil, validationError("account id is required")
	}
	acct, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	return acct, nil
}

// activeAccount loads the account behind a profile change. Suspended and
// inactive accounts may not modify themselves.
func (e *Engine) activeAccount(ctx context.Context, id string) (*Account, error) {
	acct, err := e.account(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Status != StatusActive {
		return nil, forbiddenError("account inactive")
	}
	return acct, nil
}

func repositoryError(err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return notFoundError("account not found")
	}
	return internalError(err)
}
