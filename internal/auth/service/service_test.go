package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/mail"
	memorysessions "github.com/inkwellhq/inkwell/internal/auth/session/drivers/memory"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/internal/auth/store/drivers/sqlite"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
)

// testEnv wires the full service stack against a throwaway SQLite database
// and an in-memory session store.
type testEnv struct {
	store    store.Store
	sessions *memorysessions.Store

	auth       *AuthService
	bruteForce *BruteForceService
	mfa        *MFAService
	remember   *RememberService
	sessionSvc *SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	st, err := sqlite.NewStore("file:" + filepath.Join(dir, "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := memorysessions.NewStore()

	env := &testEnv{
		store:    st,
		sessions: sessions,
	}
	env.bruteForce = &BruteForceService{Store: st, Logger: logger}
	env.mfa = &MFAService{Store: st, Issuer: "Inkwell Test"}
	env.remember = &RememberService{Store: st}
	env.sessionSvc = &SessionService{
		Sessions: sessions,
		Store:    st,
		Logger:   logger,
		CheckIP:  true,
	}
	env.auth = &AuthService{
		Store:      st,
		BruteForce: env.bruteForce,
		MFA:        env.mfa,
		Remember:   env.remember,
		Sessions:   env.sessionSvc,
		Mailer:     &mail.LogMailer{Logger: logger},
		Logger:     logger,
	}
	return env
}

const (
	testPassword = "Sturdy!Passw0rd"
	testIP       = "203.0.113.10"
	testUA       = "Mozilla/5.0 (X11; Linux x86_64) test"
)

// newVerifiedUser registers an account and marks its email verified so it
// can log in.
func (env *testEnv) newVerifiedUser(t *testing.T, email, username string) domain.User {
	t.Helper()
	ctx := context.Background()

	user, err := env.auth.Register(ctx, email, username, testPassword)
	require.NoError(t, err)
	require.NoError(t, env.auth.VerifyEmail(ctx, user.ID))
	return user
}

// enableTwoFactor enrols the user and activates TOTP, returning the shared
// secret and the issued backup codes.
func (env *testEnv) enableTwoFactor(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := env.mfa.Enroll(ctx, userID, "test@example.com")
	require.NoError(t, err)

	code := currentTOTP(t, enrollment.Secret)
	backupCodes, err := env.mfa.Enable(ctx, userID, code, testIP, testUA)
	require.NoError(t, err)
	require.Len(t, backupCodes, 10)

	return enrollment.Secret, backupCodes
}

func currentTOTP(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return code
}

func totpAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}
