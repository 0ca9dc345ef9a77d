package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
)

func TestRememberIssueAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	token, err := env.remember.Issue(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	redeemed, rotated, err := env.remember.Redeem(ctx, token, testIP, testUA)
	require.NoError(t, err)
	require.Equal(t, user.ID, redeemed.ID)
	require.NotEqual(t, token, rotated)

	// Redemption rotates: the old token is now dead, the new one works.
	_, _, err = env.remember.Redeem(ctx, token, testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)

	redeemed, _, err = env.remember.Redeem(ctx, rotated, testIP, testUA)
	require.NoError(t, err)
	require.Equal(t, user.ID, redeemed.ID)
}

func TestRememberRedeemUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.remember.Redeem(ctx, "never-issued", testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)
}

func TestRememberRedeemExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	raw := cryptox.MustGenerateToken(cryptox.TokenSize256)
	require.NoError(t, env.store.RememberTokens().Upsert(ctx, domain.RememberToken{
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}))

	_, _, err := env.remember.Redeem(ctx, raw, testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)
}

func TestRememberRedeemLockedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	token, err := env.remember.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.store.Users().SetLocked(ctx, user.ID, true))

	_, _, err = env.remember.Redeem(ctx, token, testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)
}

func TestRememberIssueReplacesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	first, err := env.remember.Issue(ctx, user.ID)
	require.NoError(t, err)
	second, err := env.remember.Issue(ctx, user.ID)
	require.NoError(t, err)

	_, _, err = env.remember.Redeem(ctx, first, testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid, "only one remember token per user")

	_, _, err = env.remember.Redeem(ctx, second, testIP, testUA)
	require.NoError(t, err)
}

func TestRememberRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	token, err := env.remember.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.remember.Revoke(ctx, user.ID))

	_, _, err = env.remember.Redeem(ctx, token, testIP, testUA)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)
}
