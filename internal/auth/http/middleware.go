package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/inkwellhq/inkwell/internal/auth/service"
	"github.com/inkwellhq/inkwell/pkg/httpx"
	"github.com/inkwellhq/inkwell/pkg/slogx"
)

// isMobile is a coarse user-agent check used to relax IP binding for
// clients that roam across carrier NAT.
func isMobile(userAgent string) bool {
	for _, marker := range []string{"Mobile", "Android", "iPhone", "iPad"} {
		if strings.Contains(userAgent, marker) {
			return true
		}
	}
	return false
}

// SessionMiddleware authenticates requests from the session cookie. Every
// hit revalidates the session (hijack checks, idle timeout, ID rotation);
// expired sessions fall back to the remember-me cookie before giving up.
func SessionMiddleware(sessions *service.SessionService, remember *service.RememberService, secure bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)
			ip := httpx.IPKeyExtractor(r)
			userAgent := r.UserAgent()

			if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
				id, sc, err := sessions.Touch(ctx, c.Value, ip, userAgent)
				switch {
				case err == nil:
					if id != c.Value {
						setSessionCookie(w, id, secure)
					}
					next.ServeHTTP(w, r.WithContext(withIdentity(ctx, sc.UserID, id)))
					return
				case errors.Is(err, service.ErrSessionHijacked):
					clearSessionCookie(w, secure)
					clearRememberCookie(w, secure)
					httpx.WriteError(w, http.StatusForbidden, "session_terminated",
						"Session was terminated for security reasons. Please log in again.")
					return
				case errors.Is(err, service.ErrSessionExpired):
					// Fall through to the remember-me cookie.
				default:
					log.Error("session validation failed", "error", err)
					httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
					return
				}
			}

			if c, err := r.Cookie(RememberCookieName); err == nil && c.Value != "" {
				user, rotated, err := remember.Redeem(ctx, c.Value, ip, userAgent)
				if err == nil {
					id, _, err := sessions.Establish(ctx, user, ip, userAgent, isMobile(userAgent))
					if err != nil {
						log.Error("failed to establish session from remember token", "error", err)
						httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
						return
					}
					setSessionCookie(w, id, secure)
					setRememberCookie(w, rotated, remember.Lifetime(), secure)
					next.ServeHTTP(w, r.WithContext(withIdentity(ctx, user.ID, id)))
					return
				}
				if !errors.Is(err, service.ErrRememberTokenInvalid) {
					log.Error("remember token redemption failed", "error", err)
					httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
					return
				}
				clearRememberCookie(w, secure)
			}

			clearSessionCookie(w, secure)
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_required", "Please log in")
		})
	}
}

// CSRFMiddleware rejects state-changing requests whose CSRF token does not
// match the session's. Runs inside SessionMiddleware so the session ID is
// already on the context.
func CSRFMiddleware(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			sessionID := httpx.SessionIDFromContext(r.Context())
			token := r.Header.Get(CSRFHeaderName)
			if token == "" {
				token = r.PostFormValue(CSRFFormField)
			}

			if err := sessions.ValidateCSRF(r.Context(), sessionID, token); err != nil {
				httpx.WriteError(w, http.StatusForbidden, "csrf_invalid", "Invalid or missing CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withIdentity(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, httpx.CtxKeyUserID, userID)
	return context.WithValue(ctx, httpx.CtxKeySessionID, sessionID)
}
