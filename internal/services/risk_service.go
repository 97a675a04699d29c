package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ewhitmore/riskledger/internal/models"
)

// RiskRepository defines the interface for risk data access
type RiskRepository interface {
	GetByID(ctx context.Context, id string) (*models.Risk, error)
	List(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*models.Risk, error)
	Create(ctx context.Context, risk *models.Risk) (*models.Risk, error)
	Update(ctx context.Context, id string, risk *models.Risk) (*models.Risk, error)
	Delete(ctx context.Context, id string) error
}

// RiskService handles register entries.
type RiskService struct {
	repo   RiskRepository
	logger *slog.Logger
}

// NewRiskService creates a new RiskService
func NewRiskService(repo RiskRepository, logger *slog.Logger) *RiskService {
	return &RiskService{repo: repo, logger: logger}
}

// RiskResponse is a risk plus its derived score and severity band.
type RiskResponse struct {
	*models.Risk
	Score    int    `json:"score"`
	Severity string `json:"severity"`
}

func riskModelToResponse(risk *models.Risk) *RiskResponse {
	score := risk.Score()
	return &RiskResponse{
		Risk:     risk,
		Score:    score,
		Severity: models.SeverityBandForScore(score),
	}
}

func validateRisk(risk *models.Risk) error {
	if strings.TrimSpace(risk.Title) == "" {
		return models.ErrBadRequest
	}
	if risk.Likelihood < 1 || risk.Likelihood > 5 || risk.Impact < 1 || risk.Impact > 5 {
		return models.ErrBadRequest
	}
	if risk.Status != "" && !models.ValidRiskStatus(risk.Status) {
		return models.ErrBadRequest
	}
	return nil
}

// GetRisk retrieves a risk by ID
func (s *RiskService) GetRisk(ctx context.Context, id string) (*RiskResponse, error) {
	risk, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get risk", slog.String("risk_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return riskModelToResponse(risk), nil
}

// ListRisks retrieves risks matching the filter with pagination
func (s *RiskService) ListRisks(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*RiskResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if filter.Status != "" && !models.ValidRiskStatus(filter.Status) {
		return nil, models.ErrBadRequest
	}

	risks, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		s.logger.Error("failed to list risks", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*RiskResponse, 0, len(risks))
	for _, risk := range risks {
		responses = append(responses, riskModelToResponse(risk))
	}
	return responses, nil
}

// CreateRisk adds a new register entry.
func (s *RiskService) CreateRisk(ctx context.Context, risk *models.Risk, createdBy string) (*RiskResponse, error) {
	if err := validateRisk(risk); err != nil {
		return nil, err
	}

	risk.CreatedBy = &createdBy
	risk.UpdatedBy = &createdBy

	created, err := s.repo.Create(ctx, risk)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to create risk", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("risk created", slog.String("risk_id", created.ID), slog.Int("score", created.Score()))
	return riskModelToResponse(created), nil
}

// UpdateRisk replaces a register entry's mutable fields.
func (s *RiskService) UpdateRisk(ctx context.Context, id string, risk *models.Risk, updatedBy string) (*RiskResponse, error) {
	if err := validateRisk(risk); err != nil {
		return nil, err
	}

	risk.UpdatedBy = &updatedBy

	updated, err := s.repo.Update(ctx, id, risk)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		if errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to update risk", slog.String("risk_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("risk updated", slog.String("risk_id", id))
	return riskModelToResponse(updated), nil
}

// DeleteRisk removes a register entry and, through the schema, its controls.
func (s *RiskService) DeleteRisk(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete risk", slog.String("risk_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("risk deleted", slog.String("risk_id", id))
	return nil
}
