package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMFAEnrollAndEnable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	enrollment, err := env.mfa.Enroll(ctx, user.ID, user.Email)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.OtpauthURL, "otpauth://totp/")

	enabled, err := env.mfa.Enabled(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, enabled, "enrolment alone must not enable two-factor auth")

	t.Run("wrong code", func(t *testing.T) {
		_, err := env.mfa.Enable(ctx, user.ID, "000000", testIP, testUA)
		require.ErrorIs(t, err, ErrTwoFactorInvalid)
	})

	codes, err := env.mfa.Enable(ctx, user.ID, currentTOTP(t, enrollment.Secret), testIP, testUA)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	enabled, err = env.mfa.Enabled(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, enabled)

	t.Run("re-enroll while enabled", func(t *testing.T) {
		_, err := env.mfa.Enroll(ctx, user.ID, user.Email)
		require.ErrorIs(t, err, ErrTwoFactorEnabled)
	})
}

func TestMFAEnableWithoutEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	_, err := env.mfa.Enable(ctx, user.ID, "123456", testIP, testUA)
	require.ErrorIs(t, err, ErrTwoFactorNotEnrolled)
}

func TestMFAVerifyCodeClockSkew(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	secret, _ := env.enableTwoFactor(t, user.ID)

	now := time.Now().UTC()

	// Codes up to two periods old are accepted.
	require.NoError(t, env.mfa.VerifyCode(ctx, user.ID, totpAt(t, secret, now.Add(-60*time.Second))))

	// Three periods back is outside the window.
	err := env.mfa.VerifyCode(ctx, user.ID, totpAt(t, secret, now.Add(-90*time.Second)))
	require.ErrorIs(t, err, ErrTwoFactorInvalid)
}

func TestMFABackupCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	_, codes := env.enableTwoFactor(t, user.ID)

	require.NoError(t, env.mfa.VerifyCode(ctx, user.ID, codes[0]))

	err := env.mfa.VerifyCode(ctx, user.ID, codes[0])
	require.ErrorIs(t, err, ErrTwoFactorInvalid, "a consumed backup code must never validate again")

	remaining, err := env.mfa.BackupCodesRemaining(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 9, remaining)
}

func TestMFARegenerateBackupCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	secret, oldCodes := env.enableTwoFactor(t, user.ID)

	newCodes, err := env.mfa.RegenerateBackupCodes(ctx, user.ID, currentTOTP(t, secret))
	require.NoError(t, err)
	require.Len(t, newCodes, 10)
	require.NotEqual(t, oldCodes, newCodes)

	// Old codes died with the regeneration.
	err = env.mfa.VerifyCode(ctx, user.ID, oldCodes[0])
	require.ErrorIs(t, err, ErrTwoFactorInvalid)

	require.NoError(t, env.mfa.VerifyCode(ctx, user.ID, newCodes[0]))
}

func TestMFADisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	secret, _ := env.enableTwoFactor(t, user.ID)

	t.Run("wrong code", func(t *testing.T) {
		err := env.mfa.Disable(ctx, user.ID, "000000", testIP, testUA)
		require.ErrorIs(t, err, ErrTwoFactorInvalid)
	})

	require.NoError(t, env.mfa.Disable(ctx, user.ID, currentTOTP(t, secret), testIP, testUA))

	enabled, err := env.mfa.Enabled(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, enabled)

	remaining, err := env.mfa.BackupCodesRemaining(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, remaining, "backup codes must be discarded on disable")

	t.Run("disable when not enabled", func(t *testing.T) {
		err := env.mfa.Disable(ctx, user.ID, "123456", testIP, testUA)
		require.ErrorIs(t, err, ErrTwoFactorNotEnabled)
	})
}
