package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	pkgauth "github.com/ewhitmore/riskledger/pkg/auth"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

// MFAStore is the slice of the user store the enrollment flow touches.
type MFAStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetMFAPendingSecret(ctx context.Context, id string, secretEnc, nonce []byte) error
	SetMFASecret(ctx context.Context, id string, secretEnc, nonce []byte) error
	ClearMFA(ctx context.Context, id string) error
}

// MFAService manages TOTP enrollment. Secrets live encrypted in the user
// row; a generated secret stays pending until the holder proves they can
// produce a code from it.
type MFAService struct {
	store       MFAStore
	totp        *auth.TOTPManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewMFAService creates a new MFAService
func NewMFAService(store MFAStore, totp *auth.TOTPManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *MFAService {
	return &MFAService{
		store:       store,
		totp:        totp,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// MFASetupResponse carries the provisioning material for the authenticator
// app. The plaintext secret appears here once and is never returned again.
type MFASetupResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

// MFAStatusResponse reports whether MFA is active and whether an
// unconfirmed enrollment is in flight.
type MFAStatusResponse struct {
	Enabled      bool `json:"enabled"`
	PendingSetup bool `json:"pending_setup"`
}

// BeginSetup generates a fresh secret and stores it as pending. Calling it
// again before confirmation replaces the pending secret; an already-enabled
// account must disable first.
func (s *MFAService) BeginSetup(ctx context.Context, userID string) (*MFASetupResponse, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	if user.MFAEnabled {
		return nil, models.ErrConflict
	}

	enrollment, err := s.totp.GenerateEnrollment(user.Email)
	if err != nil {
		s.logger.Error("failed to generate MFA enrollment", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.store.SetMFAPendingSecret(ctx, userID, enrollment.SecretEnc, enrollment.SecretNonce); err != nil {
		s.logger.Error("failed to store pending MFA secret", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("MFA setup started", slog.String("user_id", userID))
	return &MFASetupResponse{
		Secret: enrollment.Secret,
		URI:    enrollment.URI,
		QRCode: enrollment.QRDataURL,
	}, nil
}

// ConfirmSetup validates a code against the pending secret and, on success,
// promotes it to the confirmed secret and enables MFA.
func (s *MFAService) ConfirmSetup(ctx context.Context, userID, code, ipAddress string) error {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return models.ErrInternalServer
	}

	if len(user.MFAPendingEnc) == 0 {
		return models.ErrMFANotEnrolled
	}

	secret, err := s.totp.DecryptSecret(user.MFAPendingEnc, user.MFAPendingNonce)
	if err != nil {
		s.logger.Error("failed to decrypt pending MFA secret", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !s.totp.ValidateCode(string(secret), code) {
		s.auditLogger.LogAccountAction("mfa_confirm_failed", userID, ipAddress, nil)
		return models.ErrMFAInvalidCode
	}

	if err := s.store.SetMFASecret(ctx, userID, user.MFAPendingEnc, user.MFAPendingNonce); err != nil {
		s.logger.Error("failed to confirm MFA secret", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA enabled", slog.String("user_id", userID))
	s.auditLogger.LogAccountAction("mfa_enabled", userID, ipAddress, nil)
	return nil
}

// Disable turns MFA off. It requires the account password and a currently
// valid code so a hijacked session alone cannot strip the second factor.
func (s *MFAService) Disable(ctx context.Context, userID, password, code, ipAddress string) error {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return models.ErrInternalServer
	}

	if !user.MFAEnabled {
		return models.ErrMFANotEnrolled
	}

	if !pkgauth.VerifyPassword(user.PasswordHash, password) {
		s.auditLogger.LogAccountAction("mfa_disable_failed", userID, ipAddress, nil)
		return models.ErrUnauthorized
	}

	valid, err := s.ValidateConfirmedCode(user, code)
	if err != nil {
		return models.ErrInternalServer
	}
	if !valid {
		s.auditLogger.LogAccountAction("mfa_disable_failed", userID, ipAddress, nil)
		return models.ErrMFAInvalidCode
	}

	if err := s.store.ClearMFA(ctx, userID); err != nil {
		s.logger.Error("failed to clear MFA", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA disabled", slog.String("user_id", userID))
	s.auditLogger.LogAccountAction("mfa_disabled", userID, ipAddress, nil)
	return nil
}

// Status reports the account's enrollment state.
func (s *MFAService) Status(ctx context.Context, userID string) (*MFAStatusResponse, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	return &MFAStatusResponse{
		Enabled:      user.MFAEnabled,
		PendingSetup: !user.MFAEnabled && len(user.MFAPendingEnc) > 0,
	}, nil
}

// ValidateConfirmedCode checks a code against the confirmed secret. Used by
// the login flow; pending secrets never validate here.
func (s *MFAService) ValidateConfirmedCode(user *models.User, code string) (bool, error) {
	if !user.MFAEnabled || len(user.MFASecretEnc) == 0 {
		return false, models.ErrMFANotEnrolled
	}

	secret, err := s.totp.DecryptSecret(user.MFASecretEnc, user.MFASecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt MFA secret", slog.String("user_id", user.ID), slog.Any("error", err))
		return false, err
	}

	return s.totp.ValidateCode(string(secret), code), nil
}
