package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ewhitmore/riskledger/internal/models"
	pkgauth "github.com/ewhitmore/riskledger/pkg/auth"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

// ResetUserStore is the slice of the user store the reset flow touches.
type ResetUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHashTx(ctx context.Context, tx pgx.Tx, id, hash string, expiresAt time.Time) error
}

// ResetTokenStore persists reset token hashes.
type ResetTokenStore interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.ResetToken, error)
	GetValidByHash(ctx context.Context, tokenHash string) (*models.ResetToken, error)
	MarkUsedTx(ctx context.Context, tx pgx.Tx, id string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// ResetService implements the forgot-password flow. Requests always succeed
// from the caller's perspective; redemption consumes the token and the
// password change in one transaction.
type ResetService struct {
	users       ResetUserStore
	tokens      ResetTokenStore
	tx          TxRunner
	email       EmailService
	tokenExpiry time.Duration
	passwordAge time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewResetService creates a new ResetService
func NewResetService(
	users ResetUserStore,
	tokens ResetTokenStore,
	tx TxRunner,
	email EmailService,
	tokenExpiry time.Duration,
	passwordAge time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *ResetService {
	return &ResetService{
		users:       users,
		tokens:      tokens,
		tx:          tx,
		email:       email,
		tokenExpiry: tokenExpiry,
		passwordAge: passwordAge,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// RequestReset starts the flow for the given email. It returns nil whether
// or not the account exists; the only observable difference is the email
// that may arrive. The plaintext token goes into the email and is never
// stored or logged.
func (s *ResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		// Still indistinguishable from success for the caller.
		return nil
	}

	if !user.Active {
		s.logger.Info("password reset requested for inactive account", slog.String("user_id", user.ID))
		return nil
	}

	token, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return nil
	}

	expiresAt := time.Now().Add(s.tokenExpiry)
	if _, err := s.tokens.Create(ctx, user.ID, pkgauth.HashResetToken(token), expiresAt); err != nil {
		s.logger.Error("failed to store reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	if err := s.email.SendPasswordResetEmail(ctx, user.Email, token, expiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	s.auditLogger.LogPasswordChange("password_reset_requested", user.ID, ipAddress, true)
	return nil
}

// RedeemReset exchanges a valid token for a new password. The token flips
// to used and the hash is replaced in the same transaction, so a token can
// never be redeemed twice and a consumed token always means the password
// changed.
func (s *ResetService) RedeemReset(ctx context.Context, token, newPassword, ipAddress string) error {
	resetToken, err := s.tokens.GetValidByHash(ctx, pkgauth.HashResetToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset redemption failed: invalid token")
			s.auditLogger.LogPasswordChange("password_reset_failed", "", ipAddress, false)
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.tokens.MarkUsedTx(ctx, tx, resetToken.ID); err != nil {
			return err
		}
		return s.users.UpdatePasswordHashTx(ctx, tx, resetToken.UserID, hash, time.Now().Add(s.passwordAge))
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the race against a concurrent redemption of the same token.
			s.auditLogger.LogPasswordChange("password_reset_failed", resetToken.UserID, ipAddress, false)
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to redeem reset token", slog.String("user_id", resetToken.UserID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset completed", slog.String("user_id", resetToken.UserID))
	s.auditLogger.LogPasswordChange("password_reset", resetToken.UserID, ipAddress, true)
	return nil
}

// CleanupExpiredTokens removes stale rows; called by the background task.
func (s *ResetService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanupExpired(ctx)
}
