package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ewhitmore/riskledger/internal/models"
	pkgauth "github.com/ewhitmore/riskledger/pkg/auth"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetLockout(ctx context.Context, id string, until *time.Time) error
	ClearFailedAttempts(ctx context.Context, id string) error
}

// UserService handles account administration: the admin CRUD surface plus
// the self-service profile operations.
type UserService struct {
	repo        UserRepository
	passwordAge time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, passwordAge time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		passwordAge: passwordAge,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return userModelToResponse(user), nil
}

// ListUsers retrieves users with pagination
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*UserResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, userModelToResponse(user))
	}
	return responses, nil
}

// CreateUser provisions an account. The initial password is set expired so
// the holder must change it at first login.
func (s *UserService) CreateUser(ctx context.Context, email, name, role, password, createdBy string) (*UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !models.ValidRole(role) {
		return nil, models.ErrBadRequest
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.Info("user already exists")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	user := &models.User{
		Email:             email,
		PasswordHash:      hash,
		Name:              name,
		Role:              role,
		Active:            true,
		PasswordExpiresAt: &now,
		PasswordChangedAt: &now,
		CreatedBy:         &createdBy,
		UpdatedBy:         &createdBy,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created", slog.String("user_id", created.ID), slog.String("role", created.Role))
	s.auditLogger.LogAccountAction("user_created", created.ID, "", map[string]string{"created_by": createdBy})
	return userModelToResponse(created), nil
}

// UpdateUser applies an admin patch: name, role, active flag.
func (s *UserService) UpdateUser(ctx context.Context, id string, patch *models.UserPatch, updatedBy string) (*UserResponse, error) {
	if patch.Role != nil && !models.ValidRole(*patch.Role) {
		return nil, models.ErrBadRequest
	}

	patch.UpdatedBy = &updatedBy

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user updated", slog.String("user_id", id))
	s.auditLogger.LogAccountAction("user_updated", id, "", map[string]string{"updated_by": updatedBy})
	return userModelToResponse(user), nil
}

// DeleteUser removes an account. Admins cannot delete themselves; losing
// the last admin through the API is not allowed either, but that guard
// lives at the handler via role checks.
func (s *UserService) DeleteUser(ctx context.Context, id, requestedBy string) error {
	if id == requestedBy {
		return models.ErrBadRequest
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user deleted", slog.String("user_id", id))
	s.auditLogger.LogAccountAction("user_deleted", id, "", map[string]string{"deleted_by": requestedBy})
	return nil
}

// Unlock clears a lockout ahead of its natural expiry.
func (s *UserService) Unlock(ctx context.Context, id, requestedBy string) error {
	if err := s.repo.ClearFailedAttempts(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to unlock user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user unlocked", slog.String("user_id", id))
	s.auditLogger.LogAccountAction("user_unlocked", id, "", map[string]string{"unlocked_by": requestedBy})
	return nil
}

// UpdateProfile is the self-service patch: name and avatar only.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*UserResponse, error) {
	patch := &models.UserPatch{
		Name:      name,
		AvatarURL: avatarURL,
		UpdatedBy: &userID,
	}

	user, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to update profile", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return userModelToResponse(user), nil
}
