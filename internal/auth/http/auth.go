package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/inkwellhq/inkwell/internal/auth/service"
	"github.com/inkwellhq/inkwell/pkg/httpx"
	"github.com/inkwellhq/inkwell/pkg/slogx"
)

// AuthHandler handles registration, login, and logout.
type AuthHandler struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
	Remember       *service.RememberService
	Secure         bool
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Remember   bool   `json:"remember"`
}

type twoFactorRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
	Remember       bool   `json:"remember"`
}

// HandleRegister handles POST /v1/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email, username, and password are required")
		return
	}

	user, err := h.AuthService.Register(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "weak_password", err.Error())
		case errors.Is(err, service.ErrUserExists):
			httpx.WriteError(w, http.StatusConflict, "user_exists", "An account with that email or username already exists")
		default:
			log.Error("registration failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}

// HandleLogin handles POST /v1/auth/login. Accounts with two-factor auth
// enabled get a challenge token back instead of a session; no cookie is set
// until the second factor clears.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	ip := httpx.IPKeyExtractor(r)
	userAgent := r.UserAgent()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	result, err := h.AuthService.Authenticate(ctx, service.Credentials{
		Identifier: req.Identifier,
		Password:   req.Password,
		IP:         ip,
		UserAgent:  userAgent,
	})
	if err != nil {
		h.writeLoginError(w, log, err)
		return
	}

	if result.TwoFactorRequired {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"two_factor_required": true,
			"challenge_token":     result.ChallengeToken,
		})
		return
	}

	h.establish(w, r, result.User.ID, req.Remember)
}

// HandleTwoFactor handles POST /v1/auth/2fa, completing a pending login
// challenge with a TOTP or backup code.
func (h *AuthHandler) HandleTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	ip := httpx.IPKeyExtractor(r)
	userAgent := r.UserAgent()

	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	user, err := h.AuthService.CompleteTwoFactor(ctx, req.ChallengeToken, req.Code, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeInvalid):
			httpx.WriteError(w, http.StatusUnauthorized, "challenge_invalid", "Invalid or expired challenge")
		case errors.Is(err, service.ErrTwoFactorInvalid):
			httpx.WriteError(w, http.StatusUnauthorized, "two_factor_invalid", "Invalid two-factor code")
		case errors.Is(err, service.ErrTooManyAttempts):
			httpx.WriteError(w, http.StatusTooManyRequests, "too_many_attempts", "Too many attempts; please log in again")
		case errors.Is(err, service.ErrAccountLocked):
			httpx.WriteError(w, http.StatusForbidden, "account_locked", "Account is locked")
		default:
			log.Error("two-factor completion failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	h.establish(w, r, user.ID, req.Remember)
}

// HandleLogout handles POST /v1/auth/logout. Requires an authenticated
// session; clears both cookies regardless of outcome.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	sessionID := httpx.SessionIDFromContext(ctx)

	err := h.AuthService.Logout(ctx, sessionID, userID, httpx.IPKeyExtractor(r), r.UserAgent())
	clearSessionCookie(w, h.Secure)
	clearRememberCookie(w, h.Secure)
	if err != nil {
		log.Error("logout failed", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleSession handles GET /v1/auth/session, reporting who the session
// belongs to. Useful for web clients restoring state after a reload.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": httpx.UserIDFromContext(r.Context()),
	})
}

// HandleCSRFToken handles GET /v1/auth/csrf. The token is created lazily on
// first request and stays stable until the session ID rotates.
func (h *AuthHandler) HandleCSRFToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token, err := h.SessionService.CSRFToken(ctx, httpx.SessionIDFromContext(ctx))
	if err != nil {
		log.Error("failed to issue csrf token", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// HandleChangePassword handles POST /v1/auth/password.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	err := h.AuthService.ChangePassword(ctx, userID, httpx.SessionIDFromContext(ctx),
		req.CurrentPassword, req.NewPassword, httpx.IPKeyExtractor(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Current password is incorrect")
		case errors.Is(err, service.ErrSamePassword):
			httpx.WriteError(w, http.StatusBadRequest, "same_password", "New password must differ from the current one")
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "weak_password", err.Error())
		default:
			log.Error("password change failed", "user_id", userID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	// Remember tokens were revoked with the old password.
	clearRememberCookie(w, h.Secure)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid identifier or password")
	case errors.Is(err, service.ErrAccountLocked):
		httpx.WriteError(w, http.StatusForbidden, "account_locked", "Account is locked due to repeated failures")
	case errors.Is(err, service.ErrTooManyFailures):
		httpx.WriteError(w, http.StatusTooManyRequests, "too_many_failures", "Too many failed attempts; try again later")
	case errors.Is(err, service.ErrEmailUnverified):
		httpx.WriteError(w, http.StatusForbidden, "email_unverified", "Email address has not been verified")
	default:
		log.Error("login failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}

// establish creates the session (and optional remember token) after a fully
// verified login and sets the cookies.
func (h *AuthHandler) establish(w http.ResponseWriter, r *http.Request, userID string, rememberMe bool) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	ip := httpx.IPKeyExtractor(r)
	userAgent := r.UserAgent()

	user, err := h.AuthService.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user for session", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	id, _, err := h.SessionService.Establish(ctx, user, ip, userAgent, isMobile(userAgent))
	if err != nil {
		log.Error("failed to establish session", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	setSessionCookie(w, id, h.Secure)

	if rememberMe {
		token, err := h.Remember.Issue(ctx, userID)
		if err != nil {
			log.Error("failed to issue remember token", "user_id", userID, "error", err)
		} else {
			setRememberCookie(w, token, h.Remember.Lifetime(), h.Secure)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}
