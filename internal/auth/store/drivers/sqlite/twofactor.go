package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type twoFactorRepo struct {
	db dbtx
}

func (r *twoFactorRepo) GetRecord(ctx context.Context, userID string) (domain.TwoFactorRecord, error) {
	var rec domain.TwoFactorRecord
	var enabledAt, lastUsedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, secret_key, is_enabled, enabled_at, last_used_at
		 FROM user_two_factor_auth WHERE user_id = ?`, userID,
	).Scan(&rec.UserID, &rec.Secret, &rec.Enabled, &enabledAt, &lastUsedAt)
	if err != nil {
		return domain.TwoFactorRecord{}, mapNotFound(err)
	}
	rec.EnabledAt = mapNullTimePtr(enabledAt)
	rec.LastUsedAt = mapNullTimePtr(lastUsedAt)
	return rec, nil
}

func (r *twoFactorRepo) UpsertSecret(ctx context.Context, userID string, secret string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_two_factor_auth (user_id, secret_key, is_enabled)
		 VALUES (?, ?, 0)
		 ON CONFLICT (user_id) DO UPDATE SET secret_key = excluded.secret_key, is_enabled = 0, enabled_at = NULL`,
		userID, secret,
	)
	return err
}

func (r *twoFactorRepo) Enable(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_two_factor_auth SET is_enabled = 1, enabled_at = ? WHERE user_id = ?`,
		at, userID)
	return err
}

func (r *twoFactorRepo) Disable(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_two_factor_auth WHERE user_id = ?`, userID)
	return err
}

func (r *twoFactorRepo) TouchLastUsed(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_two_factor_auth SET last_used_at = ? WHERE user_id = ?`,
		at, userID)
	return err
}

func (r *twoFactorRepo) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_backup_codes WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, hash := range codeHashes {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO two_factor_backup_codes (user_id, code_hash) VALUES (?, ?)`,
			userID, hash); err != nil {
			return err
		}
	}
	return nil
}

func (r *twoFactorRepo) ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error) {
	// Single conditional delete: of two racing requests only one sees a row.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_backup_codes WHERE user_id = ? AND code_hash = ?`,
		userID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *twoFactorRepo) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM two_factor_backup_codes WHERE user_id = ?`, userID,
	).Scan(&count)
	return count, err
}
