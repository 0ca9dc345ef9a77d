package domain

import "time"

// RememberToken is a long-lived persistent-login credential. Only the
// SHA-256 fingerprint of the opaque token is stored; the plaintext exists
// solely in the client's cookie. At most one row per user.
type RememberToken struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}
