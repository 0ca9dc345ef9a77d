package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client is an unauthenticated client for the Inkwell auth service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new auth service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth service error %d: %s (%s)", e.StatusCode, e.Code, e.Description)
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Register creates a new account. The account cannot log in until its email
// address is verified.
func (c *Client) Register(ctx context.Context, email, username, password string) (*RegisterResponse, error) {
	var resp RegisterResponse
	err := c.doJSON(ctx, c.HTTPClient, http.MethodPost, "/v1/auth/register", map[string]any{
		"email":    email,
		"username": username,
		"password": password,
	}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type loginResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeToken    string `json:"challenge_token"`
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Username          string `json:"username"`
}

// Login authenticates with an email or username plus password. When the
// account requires a second factor, the returned session is nil and the
// challenge token must be redeemed via CompleteTwoFactor.
func (c *Client) Login(ctx context.Context, identifier, password string, remember bool) (*Session, string, error) {
	s, err := newSession(c)
	if err != nil {
		return nil, "", err
	}

	var resp loginResponse
	err = c.doJSON(ctx, s.httpClient, http.MethodPost, "/v1/auth/login", map[string]any{
		"identifier": identifier,
		"password":   password,
		"remember":   remember,
	}, nil, &resp)
	if err != nil {
		return nil, "", err
	}

	if resp.TwoFactorRequired {
		return nil, resp.ChallengeToken, nil
	}
	s.UserID = resp.UserID
	return s, "", nil
}

// CompleteTwoFactor finishes a login that required a second factor. The code
// may be a six-digit TOTP code or an eight-character backup code.
func (c *Client) CompleteTwoFactor(ctx context.Context, challengeToken, code string, remember bool) (*Session, error) {
	s, err := newSession(c)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	err = c.doJSON(ctx, s.httpClient, http.MethodPost, "/v1/auth/2fa", map[string]any{
		"challenge_token": challengeToken,
		"code":            code,
		"remember":        remember,
	}, nil, &resp)
	if err != nil {
		return nil, err
	}
	s.UserID = resp.UserID
	return s, nil
}

// HealthResponse is the liveness/readiness probe payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// GetLiveness checks that the service process is up.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, c.HTTPClient, http.MethodGet, "/livez", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetReadiness checks that the service and its database are ready.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, c.HTTPClient, http.MethodGet, "/readyz", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON performs a JSON round trip against the service. Non-2xx responses
// decode into an APIError.
func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, body any, headers map[string]string, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func newCookieClient(base *http.Client) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	clone := *base
	clone.Jar = jar
	return &clone, nil
}
