package sqlite

import "context"

type backupCodesRepo struct {
	q querier
}

func (r *backupCodesRepo) Create(ctx context.Context, accountID, codeHash string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO backup_codes (account_id, code_hash) VALUES (?, ?)`,
		accountID, codeHash,
	)
	return mapConflict(err)
}

func (r *backupCodesRepo) Consume(ctx context.Context, accountID, codeHash string) (bool, error) {
	// Delete-on-match consumes the code in the same statement that checks
	// it, so a code can never be redeemed twice.
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM backup_codes WHERE account_id = ? AND code_hash = ?`,
		accountID, codeHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *backupCodesRepo) DeleteAll(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM backup_codes WHERE account_id = ?`, accountID)
	return err
}

func (r *backupCodesRepo) Count(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE account_id = ?`, accountID,
	).Scan(&n)
	return n, err
}
