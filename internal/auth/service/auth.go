package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/mail"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
	"github.com/inkwellhq/inkwell/pkg/idx"
)

const (
	// challengeTTL bounds how long a pending two-factor challenge stays
	// redeemable after the password step.
	challengeTTL = 5 * time.Minute

	// maxChallengeAttempts is the number of second-factor guesses allowed
	// per challenge before it is discarded.
	maxChallengeAttempts = 5
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailUnverified    = errors.New("email not verified")
	ErrUserExists         = errors.New("user already exists")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrSamePassword       = errors.New("new password must differ from current")
	ErrChallengeInvalid   = errors.New("invalid or expired two-factor challenge")
	ErrTooManyAttempts    = errors.New("too many two-factor attempts")
)

// AuthService implements the credential flows: registration, password login
// with brute-force protection and the optional second factor, password
// changes, and logout.
type AuthService struct {
	Store      store.Store
	BruteForce *BruteForceService
	MFA        *MFAService
	Remember   *RememberService
	Sessions   *SessionService
	Mailer     mail.Mailer
	Logger     *slog.Logger
}

// Credentials carries a login attempt.
type Credentials struct {
	Identifier string // Email address or username
	Password   string
	IP         string
	UserAgent  string
}

// LoginResult is the outcome of a successful password check. When the
// account has two-factor auth enabled no session may be established yet;
// the caller must redeem ChallengeToken via CompleteTwoFactor first.
type LoginResult struct {
	User              domain.User
	TwoFactorRequired bool
	ChallengeToken    string
}

// Authenticate runs the full password login sequence. Lookup failures and
// password mismatches both record a failure and return ErrInvalidCredentials
// so callers cannot distinguish which accounts exist.
func (s *AuthService) Authenticate(ctx context.Context, creds Credentials) (LoginResult, error) {
	if err := s.BruteForce.CheckIP(ctx, creds.IP); err != nil {
		return LoginResult{}, err
	}

	user, err := s.lookupUser(ctx, creds.Identifier)
	if errors.Is(err, store.ErrNotFound) {
		// Burn a hash anyway so response timing does not reveal whether
		// the account exists.
		_, _ = cryptox.HashPassword(creds.Password)
		if err := s.BruteForce.RecordFailure(ctx, nil, creds.IP, creds.UserAgent, "unknown identifier"); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if user.Locked {
		if err := s.BruteForce.RecordFailure(ctx, &user.ID, creds.IP, creds.UserAgent, "account locked"); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(creds.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return LoginResult{}, fmt.Errorf("verify password: %w", err)
		}
		if err := s.BruteForce.RecordFailure(ctx, &user.ID, creds.IP, creds.UserAgent, "bad password"); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.Verified() {
		return LoginResult{}, ErrEmailUnverified
	}

	enabled, err := s.MFA.Enabled(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("check two-factor: %w", err)
	}
	if enabled {
		token, err := s.createChallenge(ctx, user.ID, creds.IP)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{User: user.Sanitized(), TwoFactorRequired: true, ChallengeToken: token}, nil
	}

	if err := s.finishLogin(ctx, user, creds.IP, creds.UserAgent); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user.Sanitized()}, nil
}

// CompleteTwoFactor redeems a pending challenge with a TOTP or backup code
// and finishes the login. The challenge is bound to the IP that passed the
// password step and allows a limited number of guesses.
func (s *AuthService) CompleteTwoFactor(ctx context.Context, token, code, ip, userAgent string) (domain.User, error) {
	c, err := s.Store.Challenges().GetChallenge(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrChallengeInvalid
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load challenge: %w", err)
	}
	if c.IP != ip {
		return domain.User{}, ErrChallengeInvalid
	}

	c, err = s.Store.Challenges().IncrementChallengeAttempts(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("count challenge attempt: %w", err)
	}
	if c.Attempts > maxChallengeAttempts {
		_ = s.Store.Challenges().DeleteChallenge(ctx, token)
		if err := s.BruteForce.RecordFailure(ctx, &c.UserID, ip, userAgent, "two-factor attempts exhausted"); err != nil {
			return domain.User{}, err
		}
		return domain.User{}, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByID(ctx, c.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup challenge user: %w", err)
	}
	if user.Locked {
		_ = s.Store.Challenges().DeleteChallenge(ctx, token)
		return domain.User{}, ErrAccountLocked
	}

	if err := s.MFA.VerifyCode(ctx, user.ID, code); err != nil {
		if errors.Is(err, ErrTwoFactorInvalid) {
			if err := s.BruteForce.RecordFailure(ctx, &user.ID, ip, userAgent, "bad two-factor code"); err != nil {
				return domain.User{}, err
			}
			return domain.User{}, ErrTwoFactorInvalid
		}
		return domain.User{}, err
	}

	_ = s.Store.Challenges().DeleteChallenge(ctx, token)

	if err := s.finishLogin(ctx, user, ip, userAgent); err != nil {
		return domain.User{}, err
	}
	return user.Sanitized(), nil
}

// Register creates a new account with a policy-checked, argon2id-hashed
// password and triggers the verification email.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	email = domain.NormalizeEmail(email)

	if res := cryptox.ValidatePasswordStrength(password); !res.Valid {
		return domain.User{}, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(res.Reasons, "; "))
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.Mailer.SendVerification(ctx, user.Email, user.Username); err != nil {
		s.Logger.Error("failed to send verification email", "user_id", user.ID, "error", err)
	}
	return user.Sanitized(), nil
}

// VerifyEmail marks the account's email as verified. Called by the web layer
// once it has validated its verification link.
func (s *AuthService) VerifyEmail(ctx context.Context, userID string) error {
	return s.Store.Users().MarkEmailVerified(ctx, userID, time.Now().UTC())
}

// ChangePassword rotates the account password. Remember tokens are revoked
// and every other live session is destroyed so stolen logins die with the
// old password; sessionID names the session performing the change, which
// survives.
func (s *AuthService) ChangePassword(ctx context.Context, userID, sessionID, current, next, ip, userAgent string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}

	if current == next {
		return ErrSamePassword
	}
	if res := cryptox.ValidatePasswordStrength(next); !res.Valid {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(res.Reasons, "; "))
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.Remember.Revoke(ctx, userID); err != nil {
		s.Logger.Error("failed to revoke remember token", "user_id", userID, "error", err)
	}
	if err := s.Sessions.DestroyOthers(ctx, userID, sessionID); err != nil {
		s.Logger.Error("failed to terminate other sessions", "user_id", userID, "error", err)
	}

	_ = s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &userID,
		EventType: domain.EventPasswordChanged,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})

	if err := s.Mailer.SendPasswordChanged(ctx, user.Email, user.Username); err != nil {
		s.Logger.Error("failed to send password changed email", "user_id", userID, "error", err)
	}
	return nil
}

// Logout tears down the session and the remember token together so a logged
// out browser cannot silently re-authenticate.
func (s *AuthService) Logout(ctx context.Context, sessionID, userID, ip, userAgent string) error {
	if err := s.Sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	if err := s.Remember.Revoke(ctx, userID); err != nil {
		s.Logger.Error("failed to revoke remember token", "user_id", userID, "error", err)
	}

	return s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &userID,
		EventType: domain.EventLogout,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *AuthService) lookupUser(ctx context.Context, identifier string) (domain.User, error) {
	if strings.Contains(identifier, "@") {
		return s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(identifier))
	}
	return s.Store.Users().GetUserByUsername(ctx, identifier)
}

func (s *AuthService) createChallenge(ctx context.Context, userID, ip string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}

	now := time.Now().UTC()
	c := domain.TwoFactorChallenge{
		Token:     token,
		UserID:    userID,
		IP:        ip,
		ExpiresAt: now.Add(challengeTTL),
		CreatedAt: now,
	}
	if err := s.Store.Challenges().CreateChallenge(ctx, c); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return token, nil
}

func (s *AuthService) finishLogin(ctx context.Context, user domain.User, ip, userAgent string) error {
	if err := s.BruteForce.ClearFailures(ctx, ip, user.ID); err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	return s.Store.SecurityEvents().Append(ctx, domain.SecurityEvent{
		ID:        idx.New().String(),
		UserID:    &user.ID,
		EventType: domain.EventLoginSuccess,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
}
