package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID carries the authenticated user's ID, injected by the
	// session middleware after the security checks pass.
	CtxKeyUserID ctxKey = "user_id"
	// CtxKeySessionID carries the current (possibly regenerated) session ID.
	CtxKeySessionID ctxKey = "session_id"
)

// UserIDFromContext returns the authenticated user ID, or "" when the
// request carries no authenticated session.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the session ID attached by the session
// middleware, or "".
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySessionID).(string); ok {
		return v
	}
	return ""
}
