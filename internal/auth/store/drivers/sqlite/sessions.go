package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/domain"
)

type sessionsRepo struct {
	q querier
}

const sessionColumns = `id, account_id, refresh_token_hash, access_token_id,
	access_expires_at, is_active, expires_at, remember_me,
	device_type, device_browser, device_os, device_ip,
	created_at, updated_at`

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (
			id, account_id, refresh_token_hash, access_token_id,
			access_expires_at, is_active, expires_at, remember_me,
			device_type, device_browser, device_os, device_ip,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.AccountID, s.RefreshTokenHash, s.AccessTokenID,
		s.AccessExpiresAt, s.IsActive, s.ExpiresAt, s.RememberMe,
		s.Device.Type, s.Device.Browser, s.Device.OS, s.Device.IP,
		s.CreatedAt, s.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *sessionsRepo) GetByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, hash)
	return scanSession(row)
}

func (r *sessionsRepo) Rotate(
	ctx context.Context,
	sessionID, oldHash, newHash, accessTokenID string,
	accessExpiresAt, expiresAt, at time.Time,
) error {
	// The refresh_token_hash condition is the compare-and-swap: a racing
	// rotation that already replaced the hash makes this update match zero
	// rows, and the loser surfaces ErrNotFound.
	res, err := r.q.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token_hash = ?,
		    access_token_id = ?,
		    access_expires_at = ?,
		    expires_at = ?,
		    updated_at = ?
		WHERE id = ? AND refresh_token_hash = ? AND is_active = 1`,
		newHash, accessTokenID, accessExpiresAt, expiresAt, at,
		sessionID, oldHash,
	)
	if err != nil {
		return mapConflict(err)
	}
	return requireRow(res)
}

func (r *sessionsRepo) Invalidate(ctx context.Context, sessionID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sessionID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) InvalidateAllForAccount(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE sessions
		SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND is_active = 1`,
		accountID,
	)
	return err
}

func (r *sessionsRepo) ListActiveForAccount(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE account_id = ? AND is_active = 1 AND expires_at > ?`,
		accountID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.AccountID, &s.RefreshTokenHash, &s.AccessTokenID,
		&s.AccessExpiresAt, &s.IsActive, &s.ExpiresAt, &s.RememberMe,
		&s.Device.Type, &s.Device.Browser, &s.Device.OS, &s.Device.IP,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func scanSessionRows(rows *sql.Rows) (domain.Session, error) {
	var s domain.Session
	err := rows.Scan(
		&s.ID, &s.AccountID, &s.RefreshTokenHash, &s.AccessTokenID,
		&s.AccessExpiresAt, &s.IsActive, &s.ExpiresAt, &s.RememberMe,
		&s.Device.Type, &s.Device.Browser, &s.Device.OS, &s.Device.IP,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	return s, nil
}
