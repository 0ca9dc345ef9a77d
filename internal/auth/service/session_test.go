package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionEstablishAndTouch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, sc, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, user.ID, sc.UserID)
	require.Empty(t, sc.CSRFToken, "CSRF token is created lazily")

	sameID, touched, err := env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.NoError(t, err)
	require.Equal(t, id, sameID, "ID should not rotate inside the regeneration interval")
	require.False(t, touched.LastActivity.Before(sc.LastActivity))
}

func TestSessionUserAgentMismatchTerminates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)

	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, "curl/8.0")
	require.ErrorIs(t, err, ErrSessionHijacked)

	// The session is gone; even the original client is logged out.
	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionIPBinding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	t.Run("mismatch terminates", func(t *testing.T) {
		id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
		require.NoError(t, err)

		_, _, err = env.sessionSvc.Touch(ctx, id, "198.51.100.50", testUA)
		require.ErrorIs(t, err, ErrSessionHijacked)
	})

	t.Run("mobile sessions roam", func(t *testing.T) {
		id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, true)
		require.NoError(t, err)

		_, _, err = env.sessionSvc.Touch(ctx, id, "198.51.100.51", testUA)
		require.NoError(t, err)
	})

	t.Run("binding disabled", func(t *testing.T) {
		env.sessionSvc.CheckIP = false
		defer func() { env.sessionSvc.CheckIP = true }()

		id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
		require.NoError(t, err)

		_, _, err = env.sessionSvc.Touch(ctx, id, "198.51.100.52", testUA)
		require.NoError(t, err)
	})
}

func TestSessionIdleTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, sc, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)

	// Backdate the last activity past the timeout.
	sc.LastActivity = time.Now().UTC().Add(-DefaultSessionTimeout - time.Minute)
	require.NoError(t, env.sessions.Put(ctx, id, sc, time.Minute))

	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionIDRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)

	csrfBefore, err := env.sessionSvc.CSRFToken(ctx, id)
	require.NoError(t, err)

	// Backdate the last regeneration so the next touch rotates.
	sc, err := env.sessions.Get(ctx, id)
	require.NoError(t, err)
	sc.LastRegeneration = time.Now().UTC().Add(-DefaultRegenerateInterval - time.Second)
	require.NoError(t, env.sessions.Put(ctx, id, sc, time.Minute))

	newID, rotated, err := env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)
	require.Equal(t, user.ID, rotated.UserID)
	require.NotEqual(t, csrfBefore, rotated.CSRFToken, "CSRF token rotates with the session ID")

	// The old ID is dead.
	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionCSRF(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)

	t.Run("no token yet rejects everything", func(t *testing.T) {
		require.ErrorIs(t, env.sessionSvc.ValidateCSRF(ctx, id, ""), ErrCSRFInvalid)
		require.ErrorIs(t, env.sessionSvc.ValidateCSRF(ctx, id, "anything"), ErrCSRFInvalid)
	})

	token, err := env.sessionSvc.CSRFToken(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := env.sessionSvc.CSRFToken(ctx, id)
	require.NoError(t, err)
	require.Equal(t, token, again, "token is stable until the session rotates")

	require.NoError(t, env.sessionSvc.ValidateCSRF(ctx, id, token))
	require.ErrorIs(t, env.sessionSvc.ValidateCSRF(ctx, id, token+"x"), ErrCSRFInvalid)
	require.ErrorIs(t, env.sessionSvc.ValidateCSRF(ctx, id, ""), ErrCSRFInvalid)
}

func TestSessionDestroy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)

	require.NoError(t, env.sessionSvc.Destroy(ctx, id))

	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, testUA)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionHijackRecordsEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newVerifiedUser(t, "reader@example.com", "reader")

	id, _, err := env.sessionSvc.Establish(ctx, user, testIP, testUA, false)
	require.NoError(t, err)

	_, _, err = env.sessionSvc.Touch(ctx, id, testIP, "curl/8.0")
	require.ErrorIs(t, err, ErrSessionHijacked)

	// The hijack left an audit trail but no login_failure rows.
	count, err := env.store.SecurityEvents().CountFailuresByUser(ctx, user.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, count)
}
