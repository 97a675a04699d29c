package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	pkgauth "github.com/ewhitmore/riskledger/pkg/auth"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

// CredentialStore is the row-level contract the login flow needs from the
// user table. Every mutation is a single atomic update; the flow never
// assumes transactional isolation across calls.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	SetLockout(ctx context.Context, id string, until *time.Time) error
	ClearFailedAttempts(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, hash string, expiresAt time.Time) error
	RecordLogin(ctx context.Context, id string) error
}

// MFASecretReader decrypts and validates confirmed MFA secrets during login.
type MFASecretReader interface {
	ValidateConfirmedCode(user *models.User, code string) (bool, error)
}

// LockoutPolicy holds the thresholds applied on failed password attempts.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// AuthService orchestrates the login state machine: credential check,
// lockout policy, password expiry, MFA gating, and session issuance.
type AuthService struct {
	store       CredentialStore
	tm          *auth.TokenManager
	mfa         MFASecretReader
	timing      *auth.TimingDelay
	lockout     LockoutPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	store CredentialStore,
	tm *auth.TokenManager,
	mfa MFASecretReader,
	timing *auth.TimingDelay,
	lockout LockoutPolicy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		store:       store,
		tm:          tm,
		mfa:         mfa,
		timing:      timing,
		lockout:     lockout,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	Active          bool    `json:"active"`
	MFAEnabled      bool    `json:"mfa_enabled"`
	PasswordExpired bool    `json:"password_expired"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	LastLoginAt     *string `json:"last_login_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// LoginResult is the outcome of a login or MFA verification attempt. When
// RequiresMFA is set, ChallengeToken is the only credential issued; the
// session token comes after the code verifies.
type LoginResult struct {
	Token           string        `json:"token,omitempty"`
	RequiresMFA     bool          `json:"requires_mfa,omitempty"`
	ChallengeToken  string        `json:"challenge_token,omitempty"`
	PasswordExpired bool          `json:"password_expired,omitempty"`
	User            *UserResponse `json:"user,omitempty"`
}

// Login runs one pass of the login state machine. mfaCode may be empty; if
// the account has MFA enabled and no code was supplied, the result carries
// a challenge token instead of a session.
//
// Unknown email, wrong password, and disabled account all return
// ErrUnauthorized so the response cannot reveal whether an account exists.
func (s *AuthService) Login(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*LoginResult, error) {
	start := time.Now()

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.audit("login_failed", "", ipAddress, userAgent, "invalid_credentials")
			s.timing.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.Active {
		s.logger.Info("login blocked: account inactive", slog.String("user_id", user.ID))
		s.audit("login_failed", user.ID, ipAddress, userAgent, "account_inactive")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	if user.Locked() {
		s.logger.Info("login blocked: account locked",
			slog.String("user_id", user.ID),
			slog.Time("locked_until", *user.LockedUntil))
		s.audit("login_failed", user.ID, ipAddress, userAgent, "account_locked")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrAccountLocked
	}

	if !pkgauth.VerifyPassword(user.PasswordHash, password) {
		return nil, s.handleFailedPassword(ctx, user, ipAddress, userAgent, start)
	}

	// Correct password: counter and lockout reset unconditionally.
	if err := s.store.ClearFailedAttempts(ctx, user.ID); err != nil {
		s.logger.Error("failed to clear failed attempts", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			challenge, err := s.tm.IssueMFAChallenge(user)
			if err != nil {
				s.logger.Error("failed to issue MFA challenge", slog.String("user_id", user.ID), slog.Any("error", err))
				return nil, models.ErrInternalServer
			}

			s.audit("login_mfa_challenge", user.ID, ipAddress, userAgent, "")
			return &LoginResult{RequiresMFA: true, ChallengeToken: challenge}, nil
		}

		valid, err := s.mfa.ValidateConfirmedCode(user, mfaCode)
		if err != nil {
			s.logger.Error("MFA validation error", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !valid {
			// MFA failures are deliberately independent of the password
			// lockout counter.
			s.logger.Info("login failed: invalid MFA code", slog.String("user_id", user.ID))
			s.audit("login_failed", user.ID, ipAddress, userAgent, "invalid_mfa_code")
			s.timing.WaitFrom(start, false)
			return nil, models.ErrMFAInvalidCode
		}
	}

	return s.completeLogin(ctx, user, ipAddress, userAgent)
}

// VerifyMFA completes a previously issued challenge. The password is not
// re-submitted; the challenge token proves it was already verified.
func (s *AuthService) VerifyMFA(ctx context.Context, challengeToken, code, ipAddress, userAgent string) (*LoginResult, error) {
	start := time.Now()

	claims, err := s.tm.ValidateChallenge(challengeToken)
	if err != nil {
		s.logger.Info("MFA verification failed: bad challenge token")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	user, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.timing.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for MFA verification", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Account state can change between challenge and code submission.
	if !user.Active || user.Locked() || !user.MFAEnabled {
		s.audit("mfa_failed", user.ID, ipAddress, userAgent, "account_state_changed")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	valid, err := s.mfa.ValidateConfirmedCode(user, code)
	if err != nil {
		s.logger.Error("MFA validation error", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !valid {
		s.logger.Info("MFA verification failed: invalid code", slog.String("user_id", user.ID))
		s.audit("mfa_failed", user.ID, ipAddress, userAgent, "invalid_mfa_code")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrMFAInvalidCode
	}

	return s.completeLogin(ctx, user, ipAddress, userAgent)
}

// ChangePassword verifies the current password and installs a new one,
// refreshing the expiry window.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, maxAge time.Duration, ipAddress string) error {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for password change", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !pkgauth.VerifyPassword(user.PasswordHash, currentPassword) {
		s.auditLogger.LogPasswordChange("password_change", user.ID, ipAddress, false)
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.store.UpdatePasswordHash(ctx, user.ID, hash, time.Now().Add(maxAge)); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange("password_change", user.ID, ipAddress, true)
	return nil
}

// Me returns the profile for the given session subject.
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}
	return userModelToResponse(user), nil
}

// handleFailedPassword increments the counter atomically and applies the
// lockout policy when the threshold is reached.
func (s *AuthService) handleFailedPassword(ctx context.Context, user *models.User, ipAddress, userAgent string, start time.Time) error {
	count, err := s.store.IncrementFailedAttempts(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to increment failed attempts", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if count >= s.lockout.Threshold {
		until := time.Now().Add(s.lockout.Duration)
		if err := s.store.SetLockout(ctx, user.ID, &until); err != nil {
			s.logger.Error("failed to set lockout", slog.String("user_id", user.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}

		s.logger.Warn("account locked after repeated failures",
			slog.String("user_id", user.ID),
			slog.Int("failed_attempts", count))
		s.audit("account_locked", user.ID, ipAddress, userAgent, "failed_attempt_threshold")
		s.timing.WaitFrom(start, false)
		return models.ErrAccountLocked
	}

	s.logger.Info("login failed: invalid credentials", slog.Int("failed_attempts", count))
	s.audit("login_failed", user.ID, ipAddress, userAgent, "invalid_credentials")
	s.timing.WaitFrom(start, false)
	return models.ErrUnauthorized
}

// completeLogin is the shared tail of both entry points: stamp last login
// (best-effort), issue the session token, and report success.
func (s *AuthService) completeLogin(ctx context.Context, user *models.User, ipAddress, userAgent string) (*LoginResult, error) {
	if err := s.store.RecordLogin(ctx, user.ID); err != nil {
		// A missing last-login stamp must not fail the login.
		s.logger.Error("failed to record login", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	expired := user.PasswordExpired()
	token, err := s.tm.IssueSession(user, expired)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &LoginResult{
		Token:           token,
		PasswordExpired: expired,
		User:            userModelToResponse(user),
	}, nil
}

func (s *AuthService) audit(eventType, userID, ipAddress, userAgent, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
}

func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Role:            user.Role,
		Active:          user.Active,
		MFAEnabled:      user.MFAEnabled,
		PasswordExpired: user.PasswordExpired(),
		AvatarURL:       user.AvatarURL,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       user.UpdatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		formatted := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &formatted
	}
	return resp
}
