package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/session"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
	"github.com/inkwellhq/inkwell/pkg/idx"
)

const (
	// DefaultSessionTimeout is the idle lifetime of a session.
	DefaultSessionTimeout = 30 * time.Minute

	// DefaultRegenerateInterval is how often the session ID is rotated on
	// activity to shrink the window a captured ID stays useful.
	DefaultRegenerateInterval = 5 * time.Minute
)

var (
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionHijacked = errors.New("session hijacked")
	ErrCSRFInvalid     = errors.New("invalid csrf token")
)

// SessionService guards the server-side session lifecycle: establishment,
// per-request validation with hijack detection, periodic ID rotation, CSRF
// token management, and teardown.
type SessionService struct {
	Sessions session.Store
	Store    store.Store
	Logger   *slog.Logger

	Timeout            time.Duration
	RegenerateInterval time.Duration

	// CheckIP enables IP binding. A session whose requests arrive from a
	// different address is terminated unless it was established from a
	// mobile client, where carrier NAT makes addresses churn.
	CheckIP bool
}

func (s *SessionService) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultSessionTimeout
	}
	return s.Timeout
}

func (s *SessionService) regenerateInterval() time.Duration {
	if s.RegenerateInterval <= 0 {
		return DefaultRegenerateInterval
	}
	return s.RegenerateInterval
}

func newSessionID() string {
	return cryptox.MustGenerateToken(cryptox.TokenSize256)
}

// Establish creates a fresh session for an authenticated user and returns
// the new session ID. The CSRF token is left empty until first requested.
func (s *SessionService) Establish(ctx context.Context, user domain.User, ip, userAgent string, mobile bool) (string, domain.SessionContext, error) {
	now := time.Now().UTC()
	sc := domain.SessionContext{
		UserID:           user.ID,
		UserAgent:        userAgent,
		IP:               ip,
		Mobile:           mobile,
		CreatedAt:        now,
		LastActivity:     now,
		LastRegeneration: now,
	}

	id := newSessionID()
	if err := s.Sessions.Put(ctx, id, sc, s.timeout()); err != nil {
		return "", domain.SessionContext{}, fmt.Errorf("store session: %w", err)
	}
	return id, sc, nil
}

// Touch validates the session for an incoming request and returns the
// (possibly rotated) session ID. Order matters: hijack checks run before the
// idle timeout so a stolen ID is reported even on a stale session.
func (s *SessionService) Touch(ctx context.Context, id, ip, userAgent string) (string, domain.SessionContext, error) {
	sc, err := s.Sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return "", domain.SessionContext{}, ErrSessionExpired
	}
	if err != nil {
		return "", domain.SessionContext{}, fmt.Errorf("load session: %w", err)
	}

	now := time.Now().UTC()

	if sc.UserAgent != userAgent {
		return "", domain.SessionContext{}, s.terminateHijacked(ctx, id, sc, ip, userAgent, "user agent mismatch")
	}
	if s.CheckIP && !sc.Mobile && sc.IP != ip {
		return "", domain.SessionContext{}, s.terminateHijacked(ctx, id, sc, ip, userAgent, "ip address mismatch")
	}

	if now.Sub(sc.LastActivity) > s.timeout() {
		_ = s.Sessions.Delete(ctx, id)
		return "", domain.SessionContext{}, ErrSessionExpired
	}

	sc.LastActivity = now

	if now.Sub(sc.LastRegeneration) >= s.regenerateInterval() {
		newID := newSessionID()
		sc.LastRegeneration = now
		// CSRF tokens are bound to the session ID; rotate them together.
		if sc.CSRFToken != "" {
			sc.CSRFToken = cryptox.MustGenerateToken(cryptox.TokenSize256)
		}
		if err := s.Sessions.Rename(ctx, id, newID, s.timeout()); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				// Lost a concurrent rotation race; the caller retries with
				// the cookie it gets back from the winning request.
				return "", domain.SessionContext{}, ErrSessionExpired
			}
			return "", domain.SessionContext{}, fmt.Errorf("rotate session: %w", err)
		}
		id = newID
	}

	if err := s.Sessions.Put(ctx, id, sc, s.timeout()); err != nil {
		return "", domain.SessionContext{}, fmt.Errorf("refresh session: %w", err)
	}
	return id, sc, nil
}

func (s *SessionService) terminateHijacked(ctx context.Context, id string, sc domain.SessionContext, ip, userAgent, reason string) error {
	_ = s.Sessions.Delete(ctx, id)

	s.Logger.Warn("session terminated on hijack suspicion",
		"user_id", sc.UserID, "reason", reason, "ip", ip)

	_ = s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &sc.UserID,
		EventType: domain.EventSessionHijack,
		IP:        ip,
		UserAgent: userAgent,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
	return ErrSessionHijacked
}

// CSRFToken returns the session's CSRF token, generating one on first use.
// Sessions that never render a form never carry a token.
func (s *SessionService) CSRFToken(ctx context.Context, id string) (string, error) {
	sc, err := s.Sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return "", ErrSessionExpired
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	if sc.CSRFToken == "" {
		sc.CSRFToken = cryptox.MustGenerateToken(cryptox.TokenSize256)
		if err := s.Sessions.Put(ctx, id, sc, s.timeout()); err != nil {
			return "", fmt.Errorf("store csrf token: %w", err)
		}
	}
	return sc.CSRFToken, nil
}

// ValidateCSRF compares the presented token against the session's stored
// token in constant time. A session without a token rejects every request.
func (s *SessionService) ValidateCSRF(ctx context.Context, id, presented string) error {
	sc, err := s.Sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionExpired
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if sc.CSRFToken == "" || presented == "" {
		return ErrCSRFInvalid
	}
	if !cryptox.ConstantTimeEquals(sc.CSRFToken, presented) {
		return ErrCSRFInvalid
	}
	return nil
}

// Destroy removes the session immediately.
func (s *SessionService) Destroy(ctx context.Context, id string) error {
	return s.Sessions.Delete(ctx, id)
}

// DestroyOthers terminates every session the user holds except keepID. Called
// after a password change so sessions opened under the old password die with
// it; keepID preserves the session that performed the change.
func (s *SessionService) DestroyOthers(ctx context.Context, userID, keepID string) error {
	return s.Sessions.DeleteByUser(ctx, userID, keepID)
}
