package cryptox

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func usePepperDir(t *testing.T) {
	t.Helper()
	SetPepperPath(filepath.Join(t.TempDir(), "pepper"))
}

func TestHashPassword(t *testing.T) {
	usePepperDir(t)

	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "expected PHC argon2id encoding, got %q", hash)

	// Salts are random, so identical passwords must hash differently.
	other, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}

func TestVerifyPassword(t *testing.T) {
	usePepperDir(t)

	hash, err := HashPassword("S3cure!password")
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("S3cure!password", hash))
	require.ErrorIs(t, VerifyPassword("s3cure!password", hash), ErrPasswordMismatch)
	require.ErrorIs(t, VerifyPassword("", hash), ErrPasswordMismatch)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	usePepperDir(t)

	require.Error(t, VerifyPassword("whatever", "not-a-phc-string"))
	require.Error(t, VerifyPassword("whatever", "$argon2id$v=19$m=65536,t=4,p=3$badsalt"))
}

func TestVerifyPasswordDifferentPepper(t *testing.T) {
	usePepperDir(t)
	hash, err := HashPassword("S3cure!password")
	require.NoError(t, err)

	// Same password under a different pepper must not verify.
	usePepperDir(t)
	require.ErrorIs(t, VerifyPassword("S3cure!password", hash), ErrPasswordMismatch)
}
