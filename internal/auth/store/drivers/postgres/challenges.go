package postgres

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO two_factor_challenges (token, user_id, ip_address, attempts, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.Token, c.UserID, c.IP, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	var c domain.TwoFactorChallenge
	err := r.db.QueryRow(ctx,
		`SELECT token, user_id, ip_address, attempts, expires_at, created_at
		 FROM two_factor_challenges WHERE token = $1 AND expires_at > $2`,
		token, time.Now().UTC(),
	).Scan(&c.Token, &c.UserID, &c.IP, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	var c domain.TwoFactorChallenge
	err := r.db.QueryRow(ctx,
		`UPDATE two_factor_challenges SET attempts = attempts + 1
		 WHERE token = $1
		 RETURNING token, user_id, ip_address, attempts, expires_at, created_at`,
		token,
	).Scan(&c.Token, &c.UserID, &c.IP, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM two_factor_challenges WHERE token = $1`, token)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM two_factor_challenges WHERE expires_at < $1`, time.Now().UTC())
	return err
}
