// Package session defines the server-side session storage contract. Session
// state never leaves the server; clients hold only an opaque random ID, so
// the backing store is the single source of truth for session data.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
)

var (
	// ErrNotFound is returned when no live session exists for the given ID.
	ErrNotFound = errors.New("session: not found")
)

// Store is the server-side session backend. Implementations must treat the
// session ID as an opaque key and must expire entries after their TTL.
type Store interface {
	// Get returns the session for id, or ErrNotFound if absent or expired.
	Get(ctx context.Context, id string) (domain.SessionContext, error)

	// Put writes the session under id with the given TTL, replacing any
	// previous value.
	Put(ctx context.Context, id string, sc domain.SessionContext, ttl time.Duration) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Rename atomically moves the session from oldID to newID, preserving
	// the stored state and resetting the TTL. Returns ErrNotFound if oldID
	// does not exist; of two concurrent renames of the same session only
	// one succeeds.
	Rename(ctx context.Context, oldID, newID string, ttl time.Duration) error

	// DeleteByUser removes every session belonging to userID except keepID.
	// Pass an empty keepID to remove them all.
	DeleteByUser(ctx context.Context, userID, keepID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
