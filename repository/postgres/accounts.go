package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, name, role, password_hash, login_provider, email_verified, status,
	recovery_email, profile_image_key, external_subject_id, pending_provider_secret,
	reset_otp_hash, reset_otp_expires_at, last_verification_sent_at, last_otp_sent_at,
	last_login_at, created_at, updated_at`

// Accounts implements accountauth.AccountRepository on the accounts table.
type Accounts struct {
	db  *sql.DB
	now func() time.Time
}

func NewAccounts(db *sql.DB) *Accounts {
	return &Accounts{db: db, now: time.Now}
}

func (r *Accounts) FindByEmail(ctx context.Context, email string) (*accountauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return findOne(ctx, r.db, query, email)
}

func (r *Accounts) FindByID(ctx context.Context, id string) (*accountauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return findOne(ctx, r.db, query, id)
}

func (r *Accounts) Create(ctx context.Context, in accountauth.NewAccount) (*accountauth.Account, error) {
	created := in.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	query :=
		`INSERT INTO accounts (id, email, name, role, password_hash, login_provider, status,
			pending_provider_secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $9)
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query,
		in.ID, in.Email, in.Name, in.Role, in.PasswordHash, string(in.LoginMethod.Provider),
		string(in.Status), in.PendingProviderSecret, created))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, accountauth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Update writes the non-nil fields of upd in one statement. When the
// statement matches no row, a second read inside the same transaction tells
// a missing account apart from a failed IfResetOTPHash guard.
func (r *Accounts) Update(ctx context.Context, id string, upd accountauth.AccountUpdate) (*accountauth.Account, error) {
	query, args := buildUpdate(id, upd, r.now())

	var out *accountauth.Account
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := scanAccount(tx.QueryRowContext(ctx, query, args...))
		if err == nil {
			out = a
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("db error: %w", err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !exists {
			return accountauth.ErrAccountNotFound
		}
		return accountauth.ErrStaleAccount
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type updateBuilder struct {
	sets []string
	args []any
}

func (b *updateBuilder) set(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, column+" = $"+strconv.Itoa(len(b.args)))
}

func (b *updateBuilder) setNullable(column string, value string) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, column+" = NULLIF($"+strconv.Itoa(len(b.args))+", '')")
}

func (b *updateBuilder) setNull(column string) {
	b.sets = append(b.sets, column+" = NULL")
}

func buildUpdate(id string, upd accountauth.AccountUpdate, now time.Time) (string, []any) {
	b := &updateBuilder{}

	if upd.Name != nil {
		b.set("name", *upd.Name)
	}
	if upd.PasswordHash != nil {
		b.setNullable("password_hash", *upd.PasswordHash)
	}
	if upd.EmailVerified != nil {
		b.set("email_verified", *upd.EmailVerified)
	}
	if upd.Status != nil {
		b.set("status", string(*upd.Status))
	}
	if upd.RecoveryEmail != nil {
		b.setNullable("recovery_email", *upd.RecoveryEmail)
	}
	if upd.ProfileImageKey != nil {
		b.setNullable("profile_image_key", *upd.ProfileImageKey)
	}
	if upd.ExternalSubjectID != nil {
		b.setNullable("external_subject_id", *upd.ExternalSubjectID)
	}
	if upd.ClearPendingProviderSecret {
		b.setNull("pending_provider_secret")
	}
	switch {
	case upd.ResetOTP != nil:
		b.set("reset_otp_hash", upd.ResetOTP.Hash)
		b.set("reset_otp_expires_at", upd.ResetOTP.ExpiresAt)
	case upd.ClearResetOTP:
		b.setNull("reset_otp_hash")
		b.setNull("reset_otp_expires_at")
	}
	if upd.LastVerificationSentAt != nil {
		b.set("last_verification_sent_at", *upd.LastVerificationSentAt)
	}
	if upd.LastOTPSentAt != nil {
		b.set("last_otp_sent_at", *upd.LastOTPSentAt)
	}
	if upd.LastLoginAt != nil {
		b.set("last_login_at", *upd.LastLoginAt)
	}
	b.set("updated_at", now)

	b.args = append(b.args, id)
	where := "id = $" + strconv.Itoa(len(b.args))
	if upd.IfResetOTPHash != nil {
		b.args = append(b.args, *upd.IfResetOTPHash)
		where += " AND COALESCE(reset_otp_hash, '') = $" + strconv.Itoa(len(b.args))
	}

	query := "UPDATE accounts SET " + strings.Join(b.sets, ", ") +
		" WHERE " + where +
		" RETURNING " + accountColumns
	return query, b.args
}

func findOne(ctx context.Context, db dbx.DBTX, query string, arg any) (*accountauth.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accountauth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*accountauth.Account, error) {
	var (
		a                                              accountauth.Account
		provider, status                               string
		passwordHash, recovery, imageKey, subject      sql.NullString
		pending, otpHash                               sql.NullString
		otpExpires, verificationSent, otpSent, loginAt sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Role, &passwordHash, &provider, &a.EmailVerified, &status,
		&recovery, &imageKey, &subject, &pending,
		&otpHash, &otpExpires, &verificationSent, &otpSent,
		&loginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.LoginMethod = accountauth.LoginMethod{Provider: accountauth.LoginProvider(provider)}
	a.Status = accountauth.AccountStatus(status)
	a.PasswordHash = passwordHash.String
	a.RecoveryEmail = recovery.String
	a.ProfileImageKey = imageKey.String
	a.ExternalSubjectID = subject.String
	a.PendingProviderSecret = pending.String
	a.ResetOTPHash = otpHash.String
	a.ResetOTPExpiresAt = nullTime(otpExpires)
	a.LastVerificationSentAt = nullTime(verificationSent)
	a.LastOTPSentAt = nullTime(otpSent)
	a.LastLoginAt = nullTime(loginAt)
	return &a, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ accountauth.AccountRepository = (*Accounts)(nil)
