package http

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the opaque session ID. HttpOnly keeps it
	// away from page scripts; SameSite=Lax plus the CSRF token covers
	// cross-site POSTs.
	SessionCookieName = "inkwell_session"

	// RememberCookieName carries the persistent login token.
	RememberCookieName = "inkwell_remember"

	// CSRFHeaderName is where clients echo the session's CSRF token on
	// state-changing requests. Form posts may use the field instead.
	CSRFHeaderName = "X-CSRF-Token"
	CSRFFormField  = "csrf_token"
)

func setSessionCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func setRememberCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRememberCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
