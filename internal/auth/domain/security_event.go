package domain

import "time"

// Security event types. The set is closed on purpose: the brute-force guard
// counts EventLoginFailure rows, so ad-hoc types would silently escape the
// lockout policy.
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailure      = "login_failure"
	EventLockout           = "lockout"
	EventLogout            = "logout"
	EventPasswordChanged   = "password_changed"
	EventTwoFactorEnabled  = "two_factor_enabled"
	EventTwoFactorDisabled = "two_factor_disabled"
	EventSessionHijack     = "session_hijack"
	EventRememberTokenUsed = "remember_token_used"
)

// SecurityEvent is one append-only audit log entry. Rows are never updated;
// the only deletion paths are retention cleanup and post-login failure
// clearing.
type SecurityEvent struct {
	ID        string
	UserID    *string // nil when the attempt never resolved to an account
	EventType string
	IP        string
	UserAgent string
	Reason    string
	CreatedAt time.Time
}
