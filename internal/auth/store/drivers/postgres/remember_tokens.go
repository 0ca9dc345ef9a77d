package postgres

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type rememberTokensRepo struct {
	db dbtx
}

func (r *rememberTokensRepo) Upsert(ctx context.Context, t domain.RememberToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO remember_tokens (user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
		t.UserID, t.TokenHash, t.ExpiresAt,
	)
	return err
}

func (r *rememberTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RememberToken, error) {
	var t domain.RememberToken
	err := r.db.QueryRow(ctx,
		`SELECT user_id, token_hash, expires_at FROM remember_tokens WHERE token_hash = $1`,
		hash,
	).Scan(&t.UserID, &t.TokenHash, &t.ExpiresAt)
	if err != nil {
		return domain.RememberToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *rememberTokensRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM remember_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *rememberTokensRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM remember_tokens WHERE expires_at < $1`, time.Now().UTC())
	return err
}
