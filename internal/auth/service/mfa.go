package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
	"github.com/inkwellhq/inkwell/pkg/idx"
)

const (
	backupCodeCount = 10 // Number of backup codes issued per enrolment

	totpPeriod = 30 // RFC 6238 time step in seconds
	totpSkew   = 2  // Accepted drift in time steps either side of now
)

var (
	ErrTwoFactorInvalid     = errors.New("invalid two-factor code")
	ErrTwoFactorEnabled     = errors.New("two-factor auth already enabled")
	ErrTwoFactorNotEnabled  = errors.New("two-factor auth not enabled")
	ErrTwoFactorNotEnrolled = errors.New("two-factor auth not enrolled")
)

// MFAService manages TOTP enrolment, verification, and backup codes.
type MFAService struct {
	Store  store.Store
	Issuer string // Issuer name shown in authenticator apps (e.g., "Inkwell")
}

// Enroll generates a fresh TOTP secret for the user and returns the
// provisioning details. Two-factor auth is NOT active yet; the user must
// confirm a valid code via Enable first.
func (s *MFAService) Enroll(ctx context.Context, userID, account string) (domain.TwoFactorEnrollment, error) {
	rec, err := s.Store.TwoFactor().GetRecord(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("get two-factor record: %w", err)
	}
	if rec.Enabled {
		return domain.TwoFactorEnrollment{}, ErrTwoFactorEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  32,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	if err := s.Store.TwoFactor().UpsertSecret(ctx, userID, key.Secret()); err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("store totp secret: %w", err)
	}

	return domain.TwoFactorEnrollment{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
		Issuer:     s.Issuer,
		Account:    account,
	}, nil
}

// Enable verifies the submitted TOTP code against the enrolled secret and,
// if valid, activates two-factor auth and issues a set of single-use backup
// codes. The plaintext codes are returned exactly once.
func (s *MFAService) Enable(ctx context.Context, userID, code, ip, userAgent string) ([]string, error) {
	rec, err := s.Store.TwoFactor().GetRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTwoFactorNotEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("get two-factor record: %w", err)
	}
	if rec.Enabled {
		return nil, ErrTwoFactorEnabled
	}

	if !s.validTOTP(code, rec.Secret) {
		return nil, ErrTwoFactorInvalid
	}

	now := time.Now().UTC()
	if err := s.Store.TwoFactor().Enable(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("enable two-factor: %w", err)
	}

	codes, err := s.issueBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	_ = s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &userID,
		EventType: domain.EventTwoFactorEnabled,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
	})

	return codes, nil
}

// Disable turns off two-factor auth after verifying a current TOTP or backup
// code. The secret and any remaining backup codes are discarded.
func (s *MFAService) Disable(ctx context.Context, userID, code, ip, userAgent string) error {
	rec, err := s.Store.TwoFactor().GetRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !rec.Enabled) {
		return ErrTwoFactorNotEnabled
	}
	if err != nil {
		return fmt.Errorf("get two-factor record: %w", err)
	}

	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return err
	}

	if err := s.Store.TwoFactor().ReplaceBackupCodes(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear backup codes: %w", err)
	}
	if err := s.Store.TwoFactor().Disable(ctx, userID); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}

	_ = s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &userID,
		EventType: domain.EventTwoFactorDisabled,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// RegenerateBackupCodes replaces any remaining backup codes with a fresh set
// after verifying a current code. Used when codes run low or may have leaked.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	rec, err := s.Store.TwoFactor().GetRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !rec.Enabled) {
		return nil, ErrTwoFactorNotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("get two-factor record: %w", err)
	}

	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return nil, err
	}
	return s.issueBackupCodes(ctx, userID)
}

// BackupCodesRemaining reports how many unused backup codes the user holds.
func (s *MFAService) BackupCodesRemaining(ctx context.Context, userID string) (int, error) {
	return s.Store.TwoFactor().CountBackupCodes(ctx, userID)
}

// Enabled reports whether two-factor auth is active for the user.
func (s *MFAService) Enabled(ctx context.Context, userID string) (bool, error) {
	rec, err := s.Store.TwoFactor().GetRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Enabled, nil
}

// VerifyCode checks a submitted second factor against the user's enabled
// enrolment. Six-digit codes are treated as TOTP, eight-character hex codes
// as backup codes; backup codes are consumed atomically so a code can never
// be redeemed twice.
func (s *MFAService) VerifyCode(ctx context.Context, userID, code string) error {
	rec, err := s.Store.TwoFactor().GetRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTwoFactorNotEnabled
	}
	if err != nil {
		return fmt.Errorf("get two-factor record: %w", err)
	}
	if !rec.Enabled {
		return ErrTwoFactorNotEnabled
	}

	code = strings.TrimSpace(code)
	switch {
	case isTOTPShape(code):
		if !s.validTOTP(code, rec.Secret) {
			return ErrTwoFactorInvalid
		}
	case isBackupShape(code):
		hash := cryptox.FingerprintToken(strings.ToUpper(code))
		ok, err := s.Store.TwoFactor().ConsumeBackupCode(ctx, userID, hash)
		if err != nil {
			return fmt.Errorf("consume backup code: %w", err)
		}
		if !ok {
			return ErrTwoFactorInvalid
		}
	default:
		return ErrTwoFactorInvalid
	}

	_ = s.Store.TwoFactor().TouchLastUsed(ctx, userID, time.Now().UTC())
	return nil
}

func (s *MFAService) validTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *MFAService) issueBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)
	for range backupCodeCount {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, code)
		hashes = append(hashes, cryptox.FingerprintToken(code))
	}
	if err := s.Store.TwoFactor().ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("store backup codes: %w", err)
	}
	return codes, nil
}

func isTOTPShape(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isBackupShape(code string) bool {
	if len(code) != 8 {
		return false
	}
	for _, r := range strings.ToUpper(code) {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
