package cryptox

import (
	"strings"
	"unicode"
)

// PolicyResult reports the outcome of a password strength check. Reasons is
// empty when Valid is true; otherwise it lists every failed requirement so
// the caller can show them all at once.
type PolicyResult struct {
	Valid   bool
	Reasons []string
}

// commonPasswords is a small deny-list of passwords seen at the top of every
// breach corpus. Checked case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"letmein":     {},
	"welcome":     {},
	"admin":       {},
	"iloveyou":    {},
	"monkey":      {},
	"dragon":      {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"abc123":      {},
	"passw0rd":    {},
	"trustno1":    {},
	"111111":      {},
	"000000":      {},
}

// ValidatePasswordStrength checks a candidate password against the site
// policy: 8-128 characters, at least one of each character class (upper,
// lower, digit, symbol), and not on the common-password deny-list.
func ValidatePasswordStrength(password string) PolicyResult {
	var reasons []string

	if len(password) < 8 {
		reasons = append(reasons, "must be at least 8 characters")
	}
	if len(password) > 128 {
		reasons = append(reasons, "must be at most 128 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must contain a digit")
	}
	if !hasSymbol {
		reasons = append(reasons, "must contain a symbol")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		reasons = append(reasons, "is too common")
	}

	return PolicyResult{Valid: len(reasons) == 0, Reasons: reasons}
}
