package domain

import "time"

// TwoFactorRecord holds a user's TOTP state. One record per user. Enabled
// implies Secret is non-empty; a record exists but stays disabled between
// enrollment and the first successful code verification.
type TwoFactorRecord struct {
	UserID     string
	Secret     string // base32, never shown again after enrollment
	Enabled    bool
	EnabledAt  *time.Time
	LastUsedAt *time.Time
}

// TwoFactorEnrollment is returned once at enrollment time. The secret and
// the otpauth:// URI are never retrievable afterwards.
type TwoFactorEnrollment struct {
	Secret      string   `json:"secret"`
	OtpauthURL  string   `json:"otpauth_url"`
	Issuer      string   `json:"issuer"`
	Account     string   `json:"account"`
	BackupCodes []string `json:"backup_codes"`
}

// TwoFactorChallenge is the short-lived record bridging password
// verification and 2FA completion. The token is handed to the client instead
// of a session; the user is not authenticated until the challenge is passed.
type TwoFactorChallenge struct {
	Token     string // opaque, random
	UserID    string
	IP        string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}
