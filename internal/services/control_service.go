package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ewhitmore/riskledger/internal/models"
)

// ControlRepository defines the interface for control data access
type ControlRepository interface {
	GetByID(ctx context.Context, id string) (*models.Control, error)
	ListByRisk(ctx context.Context, riskID string) ([]*models.Control, error)
	Create(ctx context.Context, control *models.Control) (*models.Control, error)
	Update(ctx context.Context, id string, control *models.Control) (*models.Control, error)
	Delete(ctx context.Context, id string) error
}

// ControlService handles mitigations attached to risks.
type ControlService struct {
	controls ControlRepository
	risks    RiskRepository
	logger   *slog.Logger
}

// NewControlService creates a new ControlService
func NewControlService(controls ControlRepository, risks RiskRepository, logger *slog.Logger) *ControlService {
	return &ControlService{
		controls: controls,
		risks:    risks,
		logger:   logger,
	}
}

func validateControl(control *models.Control) error {
	if strings.TrimSpace(control.Name) == "" {
		return models.ErrBadRequest
	}
	if !models.ValidControlType(control.Type) {
		return models.ErrBadRequest
	}
	if control.Status != "" && !models.ValidControlStatus(control.Status) {
		return models.ErrBadRequest
	}
	if control.Effectiveness != 0 && (control.Effectiveness < 1 || control.Effectiveness > 5) {
		return models.ErrBadRequest
	}
	return nil
}

// GetControl retrieves a control by ID
func (s *ControlService) GetControl(ctx context.Context, id string) (*models.Control, error) {
	control, err := s.controls.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get control", slog.String("control_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return control, nil
}

// ListControls retrieves all controls for a risk.
func (s *ControlService) ListControls(ctx context.Context, riskID string) ([]*models.Control, error) {
	// The risk must exist so an empty list means "no controls", not
	// "no such risk".
	if _, err := s.risks.GetByID(ctx, riskID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer
	}

	controls, err := s.controls.ListByRisk(ctx, riskID)
	if err != nil {
		s.logger.Error("failed to list controls", slog.String("risk_id", riskID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return controls, nil
}

// CreateControl attaches a new control to a risk.
func (s *ControlService) CreateControl(ctx context.Context, riskID string, control *models.Control, createdBy string) (*models.Control, error) {
	if _, err := s.risks.GetByID(ctx, riskID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer
	}

	control.RiskID = riskID
	if err := validateControl(control); err != nil {
		return nil, err
	}

	control.CreatedBy = &createdBy
	control.UpdatedBy = &createdBy

	created, err := s.controls.Create(ctx, control)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to create control", slog.String("risk_id", riskID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("control created", slog.String("control_id", created.ID), slog.String("risk_id", riskID))
	return created, nil
}

// UpdateControl replaces a control's mutable fields.
func (s *ControlService) UpdateControl(ctx context.Context, id string, control *models.Control, updatedBy string) (*models.Control, error) {
	if err := validateControl(control); err != nil {
		return nil, err
	}

	control.UpdatedBy = &updatedBy

	updated, err := s.controls.Update(ctx, id, control)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		if errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to update control", slog.String("control_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("control updated", slog.String("control_id", id))
	return updated, nil
}

// DeleteControl removes a control.
func (s *ControlService) DeleteControl(ctx context.Context, id string) error {
	if err := s.controls.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete control", slog.String("control_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("control deleted", slog.String("control_id", id))
	return nil
}
