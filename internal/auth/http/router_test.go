package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	httpapi "github.com/inkwellhq/inkwell/internal/auth/http"
	"github.com/inkwellhq/inkwell/internal/auth/mail"
	"github.com/inkwellhq/inkwell/internal/auth/service"
	memorysessions "github.com/inkwellhq/inkwell/internal/auth/session/drivers/memory"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/internal/auth/store/drivers/sqlite"
	"github.com/inkwellhq/inkwell/pkg/authsdk"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
)

const (
	testEmail    = "reader@example.com"
	testUsername = "reader"
	testPassword = "Sturdy!Passw0rd"
)

type testServer struct {
	*httptest.Server
	store store.Store
	auth  *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	st, err := sqlite.NewStore("file:" + filepath.Join(dir, "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := memorysessions.NewStore()

	bruteForce := &service.BruteForceService{Store: st, Logger: logger}
	mfa := &service.MFAService{Store: st, Issuer: "Inkwell Test"}
	remember := &service.RememberService{Store: st}
	sessionSvc := &service.SessionService{
		Sessions: sessions,
		Store:    st,
		Logger:   logger,
		CheckIP:  false, // httptest clients hop ports, not IPs; exercised in service tests
	}
	auth := &service.AuthService{
		Store:      st,
		BruteForce: bruteForce,
		MFA:        mfa,
		Remember:   remember,
		Sessions:   sessionSvc,
		Mailer:     &mail.LogMailer{Logger: logger},
		Logger:     logger,
	}

	router := httpapi.NewRouter("test", false, st, logger)
	router.AuthService = auth
	router.MFAService = mfa
	router.SessionService = sessionSvc
	router.RememberService = remember
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: st, auth: auth}
}

// registerVerified creates an account through the API and verifies its email
// directly, since the verification link lives in the web layer.
func (ts *testServer) registerVerified(t *testing.T, client *authsdk.Client) string {
	t.Helper()

	resp, err := client.Register(context.Background(), testEmail, testUsername, testPassword)
	require.NoError(t, err)
	require.NoError(t, ts.auth.VerifyEmail(context.Background(), resp.UserID))
	return resp.UserID
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
}

func TestLoginSessionLogout(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	userID := ts.registerVerified(t, client)

	session, challenge, err := client.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	require.Empty(t, challenge)
	require.Equal(t, userID, session.UserID)

	info, err := session.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, userID, info.UserID)

	require.NoError(t, session.Logout(ctx))

	_, err = session.Info(ctx)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestLoginUnverifiedEmail(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	_, err := client.Register(ctx, testEmail, testUsername, testPassword)
	require.NoError(t, err)

	_, _, err = client.Login(ctx, testEmail, testPassword, false)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "email_unverified", apiErr.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	ts.registerVerified(t, client)

	_, _, err := client.Login(ctx, testEmail, "Wrong!Passw0rd", false)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "invalid_credentials", apiErr.Code)
}

func TestCSRFRequiredOnStateChanges(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	ts.registerVerified(t, client)
	session, _, err := client.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	// A raw logout without the CSRF header must be rejected even though the
	// session cookie is valid. ChangePassword through the SDK attaches the
	// token and succeeds.
	raw := rawSessionRequest(t, ts.URL+"/v1/auth/logout", session)
	require.Equal(t, http.StatusForbidden, raw.StatusCode)
	require.Equal(t, "csrf_invalid", raw.Code)

	require.NoError(t, session.ChangePassword(ctx, testPassword, "Fresh!Passw0rd9"))
}

func TestChangePasswordEndsOtherLogins(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	ts.registerVerified(t, client)

	first, _, err := client.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	second, _, err := client.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	require.NoError(t, first.ChangePassword(ctx, testPassword, "Fresh!Passw0rd9"))

	// The browser that changed the password stays logged in; the other one
	// is signed out immediately.
	_, err = first.Info(ctx)
	require.NoError(t, err)

	_, err = second.Info(ctx)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

type rawResponse struct {
	StatusCode int
	Code       string
	Cookies    []*http.Cookie
}

// rawSessionRequest POSTs with the session's cookies but none of the SDK's
// CSRF handling.
func rawSessionRequest(t *testing.T, url string, session *authsdk.Session) rawResponse {
	t.Helper()

	// Re-use the session's cookie jar via its HTTP client, bypassing the
	// SDK request path.
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(nil))
	require.NoError(t, err)

	resp, err := session.HTTPClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Code string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	return rawResponse{StatusCode: resp.StatusCode, Code: body.Code, Cookies: resp.Cookies()}
}

func TestSessionHijackTerminates(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	client := authsdk.NewClient(ts.URL)
	ts.registerVerified(t, client)

	// Log in with one user agent, then replay the cookie with another.
	jar := loginWithUserAgent(t, ts.URL, "Mozilla/5.0 legitimate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/auth/session", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "curl/8.0 attacker")

	hc := &http.Client{Jar: jar}
	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The session died with the hijack attempt; the original client is
	// logged out too.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/auth/session", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Mozilla/5.0 legitimate")
	resp, err = hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func newJar(t *testing.T) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return jar
}

func loginWithUserAgent(t *testing.T, baseURL, userAgent string) http.CookieJar {
	t.Helper()

	jar := newJar(t)
	hc := &http.Client{Jar: jar}

	body, err := json.Marshal(map[string]any{
		"identifier": testEmail,
		"password":   testPassword,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/auth/login", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return jar
}

func TestTwoFactorLoginOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	userID := ts.registerVerified(t, client)

	session, _, err := client.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	enrollment, err := session.EnrollTOTP(ctx)
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now().UTC())
	require.NoError(t, err)
	backupCodes, err := session.EnableTOTP(ctx, code)
	require.NoError(t, err)
	require.Len(t, backupCodes, 10)
	require.NoError(t, session.Logout(ctx))

	// Password alone no longer yields a session.
	next, challenge, err := client.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	require.Nil(t, next)
	require.NotEmpty(t, challenge)

	code, err = totp.GenerateCode(enrollment.Secret, time.Now().UTC())
	require.NoError(t, err)
	completed, err := client.CompleteTwoFactor(ctx, challenge, code, false)
	require.NoError(t, err)
	require.Equal(t, userID, completed.UserID)

	info, err := completed.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, userID, info.UserID)
}

func TestRememberMeFallback(t *testing.T) {
	ts := newTestServer(t)
	client := authsdk.NewClient(ts.URL)
	ctx := context.Background()

	userID := ts.registerVerified(t, client)

	// Log in raw so the remember cookie can be captured.
	body, err := json.Marshal(map[string]any{
		"identifier": testEmail,
		"password":   testPassword,
		"remember":   true,
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rememberCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == httpapi.RememberCookieName {
			rememberCookie = c
		}
	}
	require.NotNil(t, rememberCookie, "remember=true should set the remember cookie")

	// Present only the remember cookie: a fresh session is established.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/auth/session", nil)
	require.NoError(t, err)
	req.AddCookie(rememberCookie)

	resp2, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var info struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&info))
	require.Equal(t, userID, info.UserID)

	gotSession := false
	for _, c := range resp2.Cookies() {
		if c.Name == httpapi.SessionCookieName && c.Value != "" {
			gotSession = true
		}
	}
	require.True(t, gotSession, "remember fallback should establish a new session cookie")

	// The redeemed token was rotated; replaying it fails.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/auth/session", nil)
	require.NoError(t, err)
	req.AddCookie(rememberCookie)

	resp3, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp3.StatusCode)
}
