package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, username, password_hash, email_verified_at, is_locked, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.EmailVerifiedAt, &u.Locked, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, email_verified_at, is_locked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Username, u.PasswordHash,
		u.EmailVerifiedAt, u.Locked, u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHash, time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) SetLocked(ctx context.Context, userID string, locked bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET is_locked = $1, updated_at = $2 WHERE id = $3`,
		locked, time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET email_verified_at = $1, updated_at = $2
		 WHERE id = $3 AND email_verified_at IS NULL`,
		at, time.Now().UTC(), userID)
	return err
}
