package cryptox

import (
	"crypto/subtle"
	"encoding/base32"
)

// b32 is the RFC 4648 alphabet without padding, the form authenticator apps
// expect for TOTP secrets.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeBase32 encodes raw bytes using unpadded standard base32.
func EncodeBase32(b []byte) string {
	return b32.EncodeToString(b)
}

// DecodeBase32 decodes an unpadded standard base32 string.
func DecodeBase32(s string) ([]byte, error) {
	return b32.DecodeString(s)
}

// ConstantTimeEquals compares two strings in constant time. Use for any
// comparison involving a secret (CSRF tokens, one-time codes) so the timing
// of a mismatch leaks nothing about the expected value.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
