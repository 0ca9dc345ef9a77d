package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Register(ctx, "Reader@Example.COM", "reader", testPassword)
	require.NoError(t, err)
	require.Equal(t, "reader@example.com", user.Email, "email should be normalised")
	require.Empty(t, user.PasswordHash, "registration must not leak the hash")

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.auth.Register(ctx, "reader@example.com", "other", testPassword)
		require.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := env.auth.Register(ctx, "new@example.com", "newbie", "short")
		require.ErrorIs(t, err, ErrWeakPassword)
	})
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	creds := Credentials{Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA}

	result, err := env.auth.Authenticate(ctx, creds)
	require.NoError(t, err)
	require.False(t, result.TwoFactorRequired)
	require.Equal(t, user.ID, result.User.ID)

	t.Run("by username", func(t *testing.T) {
		byName := creds
		byName.Identifier = "reader"
		result, err := env.auth.Authenticate(ctx, byName)
		require.NoError(t, err)
		require.Equal(t, user.ID, result.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		bad := creds
		bad.Password = "Wrong!Passw0rd"
		_, err := env.auth.Authenticate(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		bad := creds
		bad.Identifier = "nobody@example.com"
		_, err := env.auth.Authenticate(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticateUnverifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "pending@example.com", "pending", testPassword)
	require.NoError(t, err)

	_, err = env.auth.Authenticate(ctx, Credentials{
		Identifier: "pending@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.ErrorIs(t, err, ErrEmailUnverified)
}

func TestAuthenticateIPBlockedAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.newVerifiedUser(t, "reader@example.com", "reader")

	bad := Credentials{Identifier: "reader@example.com", Password: "Wrong!Passw0rd", IP: testIP, UserAgent: testUA}
	for i := 0; i < DefaultIPThreshold; i++ {
		_, err := env.auth.Authenticate(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the correct password is refused once the IP is blocked.
	_, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.ErrorIs(t, err, ErrTooManyFailures)

	// A different IP is unaffected.
	result, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: "198.51.100.99", UserAgent: testUA,
	})
	require.NoError(t, err)
	require.False(t, result.TwoFactorRequired)
}

func TestAuthenticateClearsFailuresOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.newVerifiedUser(t, "reader@example.com", "reader")

	bad := Credentials{Identifier: "reader@example.com", Password: "Wrong!Passw0rd", IP: testIP, UserAgent: testUA}
	for i := 0; i < 3; i++ {
		_, err := env.auth.Authenticate(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.NoError(t, err)

	require.NoError(t, env.bruteForce.CheckIP(ctx, testIP))

	// And the next few failures start counting from zero again.
	for i := 0; i < DefaultIPThreshold-1; i++ {
		_, err := env.auth.Authenticate(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestAccountLockedAfterFailuresAcrossIPs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	// Spread failures across IPs so the per-IP block never trips, only the
	// per-account lock.
	for i := 0; i < DefaultLockThreshold; i++ {
		_, err := env.auth.Authenticate(ctx, Credentials{
			Identifier: "reader@example.com",
			Password:   "Wrong!Passw0rd",
			IP:         fmt.Sprintf("203.0.113.%d", 50+i),
			UserAgent:  testUA,
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	locked, err := env.store.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, locked.Locked)

	_, err = env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: "198.51.100.1", UserAgent: testUA,
	})
	require.ErrorIs(t, err, ErrAccountLocked)
}

func TestTwoFactorLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	secret, _ := env.enableTwoFactor(t, user.ID)

	result, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.NoError(t, err)
	require.True(t, result.TwoFactorRequired)
	require.NotEmpty(t, result.ChallengeToken)

	completed, err := env.auth.CompleteTwoFactor(ctx, result.ChallengeToken, currentTOTP(t, secret), testIP, testUA)
	require.NoError(t, err)
	require.Equal(t, user.ID, completed.ID)

	// The challenge is single-use.
	_, err = env.auth.CompleteTwoFactor(ctx, result.ChallengeToken, currentTOTP(t, secret), testIP, testUA)
	require.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestCompleteTwoFactorWithBackupCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	_, backupCodes := env.enableTwoFactor(t, user.ID)

	result, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.NoError(t, err)
	require.True(t, result.TwoFactorRequired)

	completed, err := env.auth.CompleteTwoFactor(ctx, result.ChallengeToken, backupCodes[0], testIP, testUA)
	require.NoError(t, err)
	require.Equal(t, user.ID, completed.ID)
}

func TestCompleteTwoFactorIPBound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	secret, _ := env.enableTwoFactor(t, user.ID)

	result, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.NoError(t, err)

	_, err = env.auth.CompleteTwoFactor(ctx, result.ChallengeToken, currentTOTP(t, secret), "198.51.100.200", testUA)
	require.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestCompleteTwoFactorAttemptsExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")
	env.enableTwoFactor(t, user.ID)

	result, err := env.auth.Authenticate(ctx, Credentials{
		Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
	})
	require.NoError(t, err)

	for i := 0; i < maxChallengeAttempts; i++ {
		_, err := env.auth.CompleteTwoFactor(ctx, result.ChallengeToken, "000000", testIP, testUA)
		require.ErrorIs(t, err, ErrTwoFactorInvalid)
	}

	_, err = env.auth.CompleteTwoFactor(ctx, result.ChallengeToken, "000000", testIP, testUA)
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	const newPassword = "Fresh!Passw0rd9"

	t.Run("wrong current password", func(t *testing.T) {
		err := env.auth.ChangePassword(ctx, user.ID, "", "Wrong!Passw0rd", newPassword, testIP, testUA)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("same password", func(t *testing.T) {
		err := env.auth.ChangePassword(ctx, user.ID, "", testPassword, testPassword, testIP, testUA)
		require.ErrorIs(t, err, ErrSamePassword)
	})

	t.Run("weak replacement", func(t *testing.T) {
		err := env.auth.ChangePassword(ctx, user.ID, "", testPassword, "short", testIP, testUA)
		require.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("success revokes remember tokens", func(t *testing.T) {
		token, err := env.remember.Issue(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, env.auth.ChangePassword(ctx, user.ID, "", testPassword, newPassword, testIP, testUA))

		_, _, err = env.remember.Redeem(ctx, token, testIP, testUA)
		require.ErrorIs(t, err, ErrRememberTokenInvalid)

		_, err = env.auth.Authenticate(ctx, Credentials{
			Identifier: "reader@example.com", Password: testPassword, IP: testIP, UserAgent: testUA,
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		result, err := env.auth.Authenticate(ctx, Credentials{
			Identifier: "reader@example.com", Password: newPassword, IP: "198.51.100.77", UserAgent: testUA,
		})
		require.NoError(t, err)
		require.Equal(t, user.ID, result.User.ID)
	})
}

func TestChangePasswordTerminatesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	current, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)
	other, _, err := env.sessionSvc.Establish(ctx, user, "198.51.100.77", "Mozilla/5.0 other device", false)
	require.NoError(t, err)

	require.NoError(t, env.auth.ChangePassword(ctx, user.ID, current,
		testPassword, "Fresh!Passw0rd9", testIP, testUA))

	// The session that changed the password survives; every other one dies
	// with the old password.
	_, _, err = env.sessionSvc.Touch(ctx, current, testIP, testUA)
	require.NoError(t, err)

	_, _, err = env.sessionSvc.Touch(ctx, other, "198.51.100.77", "Mozilla/5.0 other device")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)
	token, err := env.remember.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, id, user.ID, testIP, testUA))

	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.ErrorIs(t, err, ErrSessionExpired)

	_, _, err = env.remember.Redeem(ctx, token, testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)
}
