package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/pkg/idx"
)

const (
	// DefaultFailureWindow is the sliding window over which login failures
	// are counted.
	DefaultFailureWindow = time.Hour

	// DefaultIPThreshold is the number of failures from a single IP within
	// the window before further attempts are refused outright.
	DefaultIPThreshold = 5

	// DefaultLockThreshold is the number of failures against a single
	// account within the window before the account is locked.
	DefaultLockThreshold = 10
)

var (
	ErrTooManyFailures = errors.New("too many failed login attempts")
)

// BruteForceService tracks failed login attempts and enforces the IP block
// and account lockout thresholds. Failures are append-only security events;
// counting rows in the window instead of keeping a mutable counter means
// concurrent failures never under-count.
type BruteForceService struct {
	Store  store.Store
	Logger *slog.Logger

	Window        time.Duration
	IPThreshold   int
	LockThreshold int
}

func (s *BruteForceService) window() time.Duration {
	if s.Window <= 0 {
		return DefaultFailureWindow
	}
	return s.Window
}

func (s *BruteForceService) ipThreshold() int {
	if s.IPThreshold <= 0 {
		return DefaultIPThreshold
	}
	return s.IPThreshold
}

func (s *BruteForceService) lockThreshold() int {
	if s.LockThreshold <= 0 {
		return DefaultLockThreshold
	}
	return s.LockThreshold
}

// CheckIP returns ErrTooManyFailures when the IP has reached the failure
// threshold within the sliding window. It is called before any credential
// verification so blocked IPs cannot probe passwords.
func (s *BruteForceService) CheckIP(ctx context.Context, ip string) error {
	since := time.Now().UTC().Add(-s.window())
	count, err := s.Store.SecurityEvents().CountFailuresByIP(ctx, ip, since)
	if err != nil {
		return fmt.Errorf("count failures by ip: %w", err)
	}
	if count >= s.ipThreshold() {
		return ErrTooManyFailures
	}
	return nil
}

// RecordFailure appends a login_failure event and, when the failing attempts
// target a known account, locks the account once its failure count reaches
// the lock threshold.
func (s *BruteForceService) RecordFailure(ctx context.Context, userID *string, ip, userAgent, reason string) error {
	now := time.Now().UTC()

	ev := domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    userID,
		EventType: domain.EventLoginFailure,
		IP:        ip,
		UserAgent: userAgent,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := s.Store.SecurityEvents().Append(ctx, ev); err != nil {
		return fmt.Errorf("append login failure: %w", err)
	}

	if userID == nil {
		return nil
	}

	count, err := s.Store.SecurityEvents().CountFailuresByUser(ctx, *userID, now.Add(-s.window()))
	if err != nil {
		return fmt.Errorf("count failures by user: %w", err)
	}
	if count < s.lockThreshold() {
		return nil
	}

	if err := s.Store.Users().SetLocked(ctx, *userID, true); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	s.Logger.Warn("account locked after repeated login failures",
		"user_id", *userID, "ip", ip, "failures", count)

	return s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    userID,
		EventType: domain.EventLockout,
		IP:        ip,
		UserAgent: userAgent,
		Reason:    fmt.Sprintf("%d failures within window", count),
		CreatedAt: time.Now().UTC(),
	})
}

// ClearFailures removes the failure history for the (ip, account) pair after
// a successful login, including anonymous failures from the same IP. Failures
// against other accounts from this IP are kept.
func (s *BruteForceService) ClearFailures(ctx context.Context, ip, userID string) error {
	return s.Store.SecurityEvents().DeleteFailures(ctx, ip, userID)
}
