package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/store"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO two_factor_challenges (token, user_id, ip_address, attempts, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Token, c.UserID, c.IP, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	var c domain.TwoFactorChallenge
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, ip_address, attempts, expires_at, created_at
		 FROM two_factor_challenges WHERE token = ? AND expires_at > ?`,
		token, time.Now().UTC(),
	).Scan(&c.Token, &c.UserID, &c.IP, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_challenges SET attempts = attempts + 1 WHERE token = ?`, token)
	if err != nil {
		return domain.TwoFactorChallenge{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.TwoFactorChallenge{}, err
	}
	if n == 0 {
		return domain.TwoFactorChallenge{}, store.ErrNotFound
	}
	c, err := r.GetChallenge(ctx, token)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrNotFound) {
		// Expired between the update and the read; treat as gone.
		return domain.TwoFactorChallenge{}, store.ErrNotFound
	}
	return c, err
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_challenges WHERE token = ?`, token)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM two_factor_challenges WHERE expires_at < ?`, time.Now().UTC())
	return err
}
