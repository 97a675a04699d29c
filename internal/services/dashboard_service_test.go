package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/riskledger/internal/models"
)

type mockDashboardRisks struct {
	byStatus   map[string]int
	bySeverity map[string]int
	top        []*models.Risk
}

func (m *mockDashboardRisks) CountByStatus(ctx context.Context) (map[string]int, error) {
	return m.byStatus, nil
}

func (m *mockDashboardRisks) CountBySeverityBand(ctx context.Context) (map[string]int, error) {
	return m.bySeverity, nil
}

func (m *mockDashboardRisks) TopOpenRisks(ctx context.Context, limit int) ([]*models.Risk, error) {
	if len(m.top) > limit {
		return m.top[:limit], nil
	}
	return m.top, nil
}

type mockControlCounter struct {
	byStatus map[string]int
}

func (m *mockControlCounter) CountByStatus(ctx context.Context) (map[string]int, error) {
	return m.byStatus, nil
}

func TestDashboardService_Summary(t *testing.T) {
	risks := &mockDashboardRisks{
		byStatus:   map[string]int{"open": 7, "mitigated": 2, "closed": 1},
		bySeverity: map[string]int{"critical": 1, "high": 3, "medium": 4, "low": 2},
		top: []*models.Risk{
			{ID: "r1", Likelihood: 5, Impact: 5},
			{ID: "r2", Likelihood: 4, Impact: 4},
		},
	}
	controls := &mockControlCounter{
		byStatus: map[string]int{"implemented": 3, "planned": 1},
	}

	svc := NewDashboardService(risks, controls, slog.Default())

	summary, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 10, summary.TotalRisks)
	assert.Equal(t, 4, summary.TotalControls)
	assert.InDelta(t, 0.75, summary.ImplementedRatio, 0.0001)
	assert.Len(t, summary.TopOpenRisks, 2)
	assert.Equal(t, 1, summary.RisksBySeverity["critical"])
}

func TestDashboardService_Summary_Empty(t *testing.T) {
	svc := NewDashboardService(
		&mockDashboardRisks{byStatus: map[string]int{}, bySeverity: map[string]int{}},
		&mockControlCounter{byStatus: map[string]int{}},
		slog.Default(),
	)

	summary, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalRisks)
	assert.Equal(t, 0.0, summary.ImplementedRatio)
}
