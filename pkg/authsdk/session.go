package authsdk

import (
	"context"
	"net/http"
)

// Session is an authenticated client bound to a server-side session cookie.
// The cookie (and the remember-me cookie, when issued) lives in the session's
// private jar, so cookie rotation performed by the server is picked up
// automatically.
type Session struct {
	UserID string

	client     *Client
	httpClient *http.Client
}

// HTTPClient exposes the cookie-carrying client for callers that need to make
// requests outside the SDK surface while staying authenticated.
func (s *Session) HTTPClient() *http.Client {
	return s.httpClient
}

func newSession(c *Client) (*Session, error) {
	hc, err := newCookieClient(c.HTTPClient)
	if err != nil {
		return nil, err
	}
	return &Session{client: c, httpClient: hc}, nil
}

// SessionInfo reports who the current session belongs to.
type SessionInfo struct {
	UserID string `json:"user_id"`
}

// Info fetches the session's identity from the server.
func (s *Session) Info(ctx context.Context) (*SessionInfo, error) {
	var resp SessionInfo
	if err := s.get(ctx, "/v1/auth/session", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout destroys the session and the remember token server-side.
func (s *Session) Logout(ctx context.Context) error {
	return s.post(ctx, "/v1/auth/logout", nil, nil)
}

// ChangePassword rotates the account password. The server revokes remember
// tokens and signs out every other session as part of the change; this
// session stays authenticated.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	return s.post(ctx, "/v1/auth/password", map[string]any{
		"current_password": current,
		"new_password":     next,
	}, nil)
}

// TOTPEnrollment is the provisioning payload for authenticator apps.
type TOTPEnrollment struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
	Issuer     string `json:"issuer"`
	Account    string `json:"account"`
}

// EnrollTOTP starts two-factor enrolment and returns the secret to load into
// an authenticator app. Two-factor auth stays off until EnableTOTP confirms
// a code.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollment, error) {
	var resp TOTPEnrollment
	if err := s.post(ctx, "/v1/mfa/totp/enroll", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnableTOTP confirms the first TOTP code and activates two-factor auth.
// The returned backup codes are shown exactly once.
func (s *Session) EnableTOTP(ctx context.Context, code string) ([]string, error) {
	var resp struct {
		BackupCodes []string `json:"backup_codes"`
	}
	if err := s.post(ctx, "/v1/mfa/totp/enable", map[string]any{"code": code}, &resp); err != nil {
		return nil, err
	}
	return resp.BackupCodes, nil
}

// DisableTOTP turns off two-factor auth after verifying a current code.
func (s *Session) DisableTOTP(ctx context.Context, code string) error {
	return s.post(ctx, "/v1/mfa/totp/disable", map[string]any{"code": code}, nil)
}

// RegenerateBackupCodes replaces the remaining backup codes with a new set.
func (s *Session) RegenerateBackupCodes(ctx context.Context, code string) ([]string, error) {
	var resp struct {
		BackupCodes []string `json:"backup_codes"`
	}
	if err := s.post(ctx, "/v1/mfa/backup-codes", map[string]any{"code": code}, &resp); err != nil {
		return nil, err
	}
	return resp.BackupCodes, nil
}

// MFAStatus reports the account's two-factor state.
type MFAStatus struct {
	Enabled              bool `json:"enabled"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// GetMFAStatus fetches the account's two-factor state.
func (s *Session) GetMFAStatus(ctx context.Context) (*MFAStatus, error) {
	var resp MFAStatus
	if err := s.get(ctx, "/v1/mfa/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Session) get(ctx context.Context, path string, out any) error {
	return s.client.doJSON(ctx, s.httpClient, http.MethodGet, path, nil, nil, out)
}

// post fetches the session's CSRF token and attaches it; the token is stable
// between session rotations so fetching per call keeps the client correct
// without tracking rotation.
func (s *Session) post(ctx context.Context, path string, body, out any) error {
	var csrf struct {
		Token string `json:"csrf_token"`
	}
	if err := s.get(ctx, "/v1/auth/csrf", &csrf); err != nil {
		return err
	}
	return s.client.doJSON(ctx, s.httpClient, http.MethodPost, path, body,
		map[string]string{"X-CSRF-Token": csrf.Token}, out)
}
