package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
	"github.com/inkwellhq/inkwell/pkg/idx"
)

// DefaultRememberTTL is the sliding lifetime of a remember-me token.
const DefaultRememberTTL = 30 * 24 * time.Hour

var (
	ErrRememberTokenInvalid = errors.New("invalid remember token")
)

// RememberService issues and redeems persistent login tokens. Only the
// SHA-256 hash of a token is stored, and each user holds at most one token
// at a time; issuing a new one replaces the old.
type RememberService struct {
	Store store.Store
	TTL   time.Duration
}

// Lifetime reports the configured token TTL, falling back to the default.
func (s *RememberService) Lifetime() time.Duration {
	if s.TTL <= 0 {
		return DefaultRememberTTL
	}
	return s.TTL
}

// Issue mints a fresh remember token for the user and returns the plaintext
// value for the cookie. The stored hash replaces any previous token.
func (s *RememberService) Issue(ctx context.Context, userID string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate remember token: %w", err)
	}

	t := domain.RememberToken{
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: time.Now().UTC().Add(s.Lifetime()),
	}
	if err := s.Store.RememberTokens().Upsert(ctx, t); err != nil {
		return "", fmt.Errorf("store remember token: %w", err)
	}
	return raw, nil
}

// Redeem exchanges a presented remember token for its user and a rotated
// replacement token. Expired or unknown tokens, and tokens belonging to
// locked accounts, fail with ErrRememberTokenInvalid.
func (s *RememberService) Redeem(ctx context.Context, raw, ip, userAgent string) (domain.User, string, error) {
	hash := cryptox.FingerprintToken(raw)

	t, err := s.Store.RememberTokens().GetByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, "", ErrRememberTokenInvalid
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup remember token: %w", err)
	}

	if time.Now().UTC().After(t.ExpiresAt) {
		_ = s.Store.RememberTokens().DeleteByUser(ctx, t.UserID)
		return domain.User{}, "", ErrRememberTokenInvalid
	}

	user, err := s.Store.Users().GetUserByID(ctx, t.UserID)
	if errors.Is(err, store.ErrNotFound) {
		_ = s.Store.RememberTokens().DeleteByUser(ctx, t.UserID)
		return domain.User{}, "", ErrRememberTokenInvalid
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup remember token user: %w", err)
	}
	if user.Locked {
		_ = s.Store.RememberTokens().DeleteByUser(ctx, user.ID)
		return domain.User{}, "", ErrRememberTokenInvalid
	}

	// Rotate on every use so a stolen token stops working the moment the
	// legitimate client redeems its copy.
	next, err := s.Issue(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &user.ID,
		EventType: domain.EventRememberTokenUsed,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})

	return user, next, nil
}

// Revoke deletes the user's remember token, if any.
func (s *RememberService) Revoke(ctx context.Context, userID string) error {
	return s.Store.RememberTokens().DeleteByUser(ctx, userID)
}
