package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/domain"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `id, email, password_hash, first_name, last_name, role,
	email_verified, email_verification_token, email_verification_expires_at,
	password_reset_token, password_reset_expires_at,
	failed_login_attempts, locked_until,
	two_factor_enabled, two_factor_secret,
	is_active, last_login_at, last_login_ip, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a               domain.Account
		verifyToken     sql.NullString
		verifyExpires   sql.NullTime
		resetToken      sql.NullString
		resetExpires    sql.NullTime
		lockedUntil     sql.NullTime
		twoFactorSecret sql.NullString
		lastLoginAt     sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Role,
		&a.EmailVerified, &verifyToken, &verifyExpires,
		&resetToken, &resetExpires,
		&a.FailedLoginAttempts, &lockedUntil,
		&a.TwoFactorEnabled, &twoFactorSecret,
		&a.IsActive, &lastLoginAt, &a.LastLoginIP, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.EmailVerificationToken = stringPtr(verifyToken)
	a.EmailVerificationExpiresAt = timePtr(verifyExpires)
	a.PasswordResetToken = stringPtr(resetToken)
	a.PasswordResetExpiresAt = timePtr(resetExpires)
	a.LockedUntil = timePtr(lockedUntil)
	a.TwoFactorSecret = stringPtr(twoFactorSecret)
	a.LastLoginAt = timePtr(lastLoginAt)

	return a, nil
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, first_name, last_name, role,
			email_verified, email_verification_token, email_verification_expires_at,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Role,
		a.EmailVerified, nullString(a.EmailVerificationToken), nullTime(a.EmailVerificationExpiresAt),
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *accountsRepo) RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = ?,
		    last_login_ip = ?,
		    updated_at = ?
		WHERE id = ?`,
		at, ip, at, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) RecordLoginFailure(
	ctx context.Context,
	id string,
	threshold int,
	lockFor time.Duration,
	at time.Time,
) (int, *time.Time, error) {
	// Single statement: the counter and the conditional lock land together
	// or not at all.
	row := r.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN ?
		        ELSE locked_until
		    END,
		    updated_at = ?
		WHERE id = ?
		RETURNING failed_login_attempts, locked_until`,
		threshold, at.Add(lockFor), at, id,
	)

	var attempts int
	var lockedUntil sql.NullTime
	if err := row.Scan(&attempts, &lockedUntil); err != nil {
		return 0, nil, mapNotFound(err)
	}
	return attempts, timePtr(lockedUntil), nil
}

func (r *accountsRepo) SetEmailVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET email_verification_token = ?,
		    email_verification_expires_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		token, expiresAt, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET email_verified = 1,
		    email_verification_token = NULL,
		    email_verification_expires_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) SetPasswordResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET password_reset_token = ?,
		    password_reset_expires_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		token, expiresAt, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) CompletePasswordReset(ctx context.Context, id, newHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?,
		    password_reset_token = NULL,
		    password_reset_expires_at = NULL,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		newHash, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) SetTwoFactorSecret(ctx context.Context, id, secret string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET two_factor_secret = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		secret, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) EnableTwoFactor(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET two_factor_enabled = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) DisableTwoFactor(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET two_factor_enabled = 0,
		    two_factor_secret = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) ClearExpiredTokens(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET email_verification_token = CASE
		        WHEN email_verification_expires_at IS NOT NULL AND email_verification_expires_at <= ?
		        THEN NULL ELSE email_verification_token END,
		    email_verification_expires_at = CASE
		        WHEN email_verification_expires_at IS NOT NULL AND email_verification_expires_at <= ?
		        THEN NULL ELSE email_verification_expires_at END,
		    password_reset_token = CASE
		        WHEN password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= ?
		        THEN NULL ELSE password_reset_token END,
		    password_reset_expires_at = CASE
		        WHEN password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= ?
		        THEN NULL ELSE password_reset_expires_at END
		WHERE (email_verification_expires_at IS NOT NULL AND email_verification_expires_at <= ?)
		   OR (password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= ?)`,
		now, now, now, now, now, now,
	)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
