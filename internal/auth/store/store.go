package store

import (
	"context"
	"errors"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
type Store interface {
	Users() Users
	SecurityEvents() SecurityEvents
	TwoFactor() TwoFactor
	RememberTokens() RememberTokens
	Challenges() Challenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rollback when fn errors,
	// commit otherwise. Preferred over Tx for multi-step operations.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up by normalized (lowercased) email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByUsername looks up by exact username.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists on email or username collision.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetLocked flips the account lock flag.
	SetLocked(ctx context.Context, userID string, locked bool) error

	// MarkEmailVerified stamps email_verified_at if not already set.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error
}

type SecurityEvents interface {
	// Append writes one immutable audit event.
	Append(ctx context.Context, ev domain.SecurityEvent) error

	// CountFailuresByIP counts login_failure events for an IP since the
	// given time. This is the brute-force guard's sliding window: counting
	// append-only rows by range query avoids read-modify-write races on a
	// mutable counter.
	CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// CountFailuresByUser counts login_failure events for an account since
	// the given time, regardless of source IP.
	CountFailuresByUser(ctx context.Context, userID string, since time.Time) (int, error)

	// DeleteFailures removes login_failure events for the (ip, user) pair
	// plus anonymous failures from that IP. Called only after a fully
	// successful authentication.
	DeleteFailures(ctx context.Context, ip string, userID string) error

	// DeleteOlderThan prunes events past the retention horizon.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

type TwoFactor interface {
	// GetRecord returns the user's 2FA record (without backup codes).
	GetRecord(ctx context.Context, userID string) (domain.TwoFactorRecord, error)

	// UpsertSecret stores a freshly generated secret with enabled=false,
	// replacing any previous not-yet-enabled secret.
	UpsertSecret(ctx context.Context, userID string, secret string) error

	// Enable flips enabled=true and stamps enabled_at.
	Enable(ctx context.Context, userID string, at time.Time) error

	// Disable removes the record entirely. Backup codes are deleted by the
	// caller in the same transaction.
	Disable(ctx context.Context, userID string) error

	// TouchLastUsed stamps last_used_at after a successful verification.
	TouchLastUsed(ctx context.Context, userID string, at time.Time) error

	// ReplaceBackupCodes deletes all stored backup code hashes for the user
	// and inserts the given set.
	ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error

	// ConsumeBackupCode atomically deletes the matching backup code hash and
	// reports whether a row was removed. Single conditional delete, so two
	// concurrent requests cannot both spend the same code.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)

	// CountBackupCodes returns how many unused codes remain.
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

type RememberTokens interface {
	// Upsert stores the token hash with one-row-per-user semantics in a
	// single atomic insert-or-update.
	Upsert(ctx context.Context, t domain.RememberToken) error

	// GetByHash returns a token record by its hash, expired or not. Expiry
	// is the caller's check so the distinction can be logged.
	GetByHash(ctx context.Context, hash string) (domain.RememberToken, error)

	// DeleteByUser removes the user's token (logout, password change).
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired is housekeeping.
	DeleteExpired(ctx context.Context) error
}

type Challenges interface {
	// CreateChallenge writes a new pending two-factor challenge.
	CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error

	// GetChallenge retrieves a challenge by token (only if not expired).
	GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error)

	// IncrementChallengeAttempts bumps the failed attempt counter and
	// returns the updated challenge.
	IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error)

	// DeleteChallenge removes a challenge by token.
	DeleteChallenge(ctx context.Context, token string) error

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context) error
}
