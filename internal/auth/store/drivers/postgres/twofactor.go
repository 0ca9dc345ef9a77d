package postgres

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type twoFactorRepo struct {
	db dbtx
}

func (r *twoFactorRepo) GetRecord(ctx context.Context, userID string) (domain.TwoFactorRecord, error) {
	var rec domain.TwoFactorRecord
	err := r.db.QueryRow(ctx,
		`SELECT user_id, secret_key, is_enabled, enabled_at, last_used_at
		 FROM user_two_factor_auth WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.Secret, &rec.Enabled, &rec.EnabledAt, &rec.LastUsedAt)
	if err != nil {
		return domain.TwoFactorRecord{}, mapNotFound(err)
	}
	return rec, nil
}

func (r *twoFactorRepo) UpsertSecret(ctx context.Context, userID string, secret string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_two_factor_auth (user_id, secret_key, is_enabled)
		 VALUES ($1, $2, FALSE)
		 ON CONFLICT (user_id) DO UPDATE SET secret_key = EXCLUDED.secret_key, is_enabled = FALSE, enabled_at = NULL`,
		userID, secret,
	)
	return err
}

func (r *twoFactorRepo) Enable(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE user_two_factor_auth SET is_enabled = TRUE, enabled_at = $1 WHERE user_id = $2`,
		at, userID)
	return err
}

func (r *twoFactorRepo) Disable(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_two_factor_auth WHERE user_id = $1`, userID)
	return err
}

func (r *twoFactorRepo) TouchLastUsed(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE user_two_factor_auth SET last_used_at = $1 WHERE user_id = $2`,
		at, userID)
	return err
}

func (r *twoFactorRepo) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM two_factor_backup_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, hash := range codeHashes {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO two_factor_backup_codes (user_id, code_hash) VALUES ($1, $2)`,
			userID, hash); err != nil {
			return err
		}
	}
	return nil
}

func (r *twoFactorRepo) ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error) {
	// Single conditional delete: of two racing requests only one sees a row.
	tag, err := r.db.Exec(ctx,
		`DELETE FROM two_factor_backup_codes WHERE user_id = $1 AND code_hash = $2`,
		userID, codeHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *twoFactorRepo) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM two_factor_backup_codes WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, err
}
