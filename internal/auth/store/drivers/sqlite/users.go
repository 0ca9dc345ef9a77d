package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, username, password_hash, email_verified_at, is_locked, created_at, updated_at`

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var verifiedAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&verifiedAt, &u.Locked, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.EmailVerifiedAt = mapNullTimePtr(verifiedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, email_verified_at, is_locked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash,
		mapOptionalTime(u.EmailVerifiedAt), u.Locked, u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) SetLocked(ctx context.Context, userID string, locked bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_locked = ?, updated_at = ? WHERE id = ?`,
		locked, time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified_at = ?, updated_at = ?
		 WHERE id = ? AND email_verified_at IS NULL`,
		at, time.Now().UTC(), userID)
	return err
}
