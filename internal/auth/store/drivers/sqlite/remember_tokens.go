package sqlite

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type rememberTokensRepo struct {
	db dbtx
}

func (r *rememberTokensRepo) Upsert(ctx context.Context, t domain.RememberToken) error {
	// One row per user; the conflict target makes the insert-or-update a
	// single atomic statement.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO remember_tokens (user_id, token_hash, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET token_hash = excluded.token_hash, expires_at = excluded.expires_at`,
		t.UserID, t.TokenHash, t.ExpiresAt,
	)
	return err
}

func (r *rememberTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RememberToken, error) {
	var t domain.RememberToken
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, token_hash, expires_at FROM remember_tokens WHERE token_hash = ?`,
		hash,
	).Scan(&t.UserID, &t.TokenHash, &t.ExpiresAt)
	if err != nil {
		return domain.RememberToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *rememberTokensRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM remember_tokens WHERE user_id = ?`, userID)
	return err
}

func (r *rememberTokensRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM remember_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
