package domain

import (
	"strings"
	"time"
)

// User is the credential record for one account. Story content, profiles and
// role assignments live in the main application; this service only owns what
// authentication needs.
type User struct {
	ID              string
	Email           string
	Username        string
	PasswordHash    string     // argon2id, PHC encoded
	EmailVerifiedAt *time.Time // nil until the verification link is followed
	Locked          bool       // set by the brute-force guard, cleared out of band
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Verified reports whether the account's email address has been confirmed.
func (u User) Verified() bool { return u.EmailVerifiedAt != nil }

// Sanitized returns a copy safe to hand to the web layer: the password hash
// is stripped.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// NormalizeEmail lowercases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
