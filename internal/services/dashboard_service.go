package services

import (
	"context"
	"log/slog"

	"github.com/ewhitmore/riskledger/internal/models"
)

// DashboardRepository provides the aggregate queries behind the summary.
type DashboardRepository interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountBySeverityBand(ctx context.Context) (map[string]int, error)
	TopOpenRisks(ctx context.Context, limit int) ([]*models.Risk, error)
}

// ControlCounter provides the control-side aggregates.
type ControlCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

const topRiskLimit = 5

// DashboardService assembles the landing-page summary.
type DashboardService struct {
	risks    DashboardRepository
	controls ControlCounter
	logger   *slog.Logger
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(risks DashboardRepository, controls ControlCounter, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		risks:    risks,
		controls: controls,
		logger:   logger,
	}
}

// Summary computes the dashboard aggregates. Counts come straight from the
// database so the summary is consistent with the register at read time.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	byStatus, err := s.risks.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count risks by status", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	bySeverity, err := s.risks.CountBySeverityBand(ctx)
	if err != nil {
		s.logger.Error("failed to count risks by severity", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	topRisks, err := s.risks.TopOpenRisks(ctx, topRiskLimit)
	if err != nil {
		s.logger.Error("failed to load top risks", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	controlsByStatus, err := s.controls.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count controls by status", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	totalRisks := 0
	for _, count := range byStatus {
		totalRisks += count
	}

	totalControls := 0
	for _, count := range controlsByStatus {
		totalControls += count
	}

	ratio := 0.0
	if totalControls > 0 {
		ratio = float64(controlsByStatus[models.ControlStatusImplemented]) / float64(totalControls)
	}

	return &models.DashboardSummary{
		TotalRisks:       totalRisks,
		RisksByStatus:    byStatus,
		RisksBySeverity:  bySeverity,
		TopOpenRisks:     topRisks,
		TotalControls:    totalControls,
		ControlsByStatus: controlsByStatus,
		ImplementedRatio: ratio,
	}, nil
}
