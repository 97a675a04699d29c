package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewhitmore/riskledger/internal/handlers"
	"github.com/ewhitmore/riskledger/internal/models"
)

func TestCreateControl_Success(t *testing.T) {
	mock := &handlers.MockControlService{
		CreateControlFunc: func(ctx context.Context, riskID string, control *models.Control, createdBy string) (*models.Control, error) {
			assert.Equal(t, "risk123", riskID)
			assert.Equal(t, "user123", createdBy)
			control.ID = "ctrl123"
			control.RiskID = riskID
			return control, nil
		},
	}

	handler := handlers.NewControlHandler(mock)
	req := handlers.NewTestRequest(t, "POST", "/risks/risk123/controls", handlers.ControlRequest{
		Name: "Quarterly patch review",
		Type: models.ControlTypePreventive,
	})
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)
	req = withURLParam(req, "id", "risk123")

	w := httptest.NewRecorder()
	handler.Create(w, req)

	var resp models.Control
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "ctrl123", resp.ID)
	assert.Equal(t, "risk123", resp.RiskID)
}

func TestCreateControl_UnknownType(t *testing.T) {
	handler := handlers.NewControlHandler(&handlers.MockControlService{})
	req := handlers.NewTestRequest(t, "POST", "/risks/risk123/controls", handlers.ControlRequest{
		Name: "Quarterly patch review",
		Type: "reactive",
	})
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)
	req = withURLParam(req, "id", "risk123")

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestCreateControl_RiskNotFound(t *testing.T) {
	mock := &handlers.MockControlService{
		CreateControlFunc: func(ctx context.Context, riskID string, control *models.Control, createdBy string) (*models.Control, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := handlers.NewControlHandler(mock)
	req := handlers.NewTestRequest(t, "POST", "/risks/ghost/controls", handlers.ControlRequest{
		Name: "Quarterly patch review",
		Type: models.ControlTypeDetective,
	})
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)
	req = withURLParam(req, "id", "ghost")

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestListControls_ByRisk(t *testing.T) {
	mock := &handlers.MockControlService{
		ListControlsFunc: func(ctx context.Context, riskID string) ([]*models.Control, error) {
			assert.Equal(t, "risk123", riskID)
			return []*models.Control{
				{ID: "ctrl1", RiskID: riskID},
				{ID: "ctrl2", RiskID: riskID},
			}, nil
		},
	}

	handler := handlers.NewControlHandler(mock)
	req := httptest.NewRequest("GET", "/risks/risk123/controls", nil)
	req = handlers.WithAuthContext(req, "user123", models.RoleAuditor)
	req = withURLParam(req, "id", "risk123")

	w := httptest.NewRecorder()
	handler.ListByRisk(w, req)

	var resp []*models.Control
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp, 2)
}

func TestUpdateControl_Success(t *testing.T) {
	mock := &handlers.MockControlService{
		UpdateControlFunc: func(ctx context.Context, id string, control *models.Control, updatedBy string) (*models.Control, error) {
			assert.Equal(t, "ctrl123", id)
			assert.Equal(t, models.ControlStatusImplemented, control.Status)
			control.ID = id
			return control, nil
		},
	}

	handler := handlers.NewControlHandler(mock)
	req := handlers.NewTestRequest(t, "PUT", "/controls/ctrl123", handlers.ControlRequest{
		Name:          "Quarterly patch review",
		Type:          models.ControlTypePreventive,
		Status:        models.ControlStatusImplemented,
		Effectiveness: 4,
	})
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)
	req = withURLParam(req, "id", "ctrl123")

	w := httptest.NewRecorder()
	handler.Update(w, req)

	var resp models.Control
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, models.ControlStatusImplemented, resp.Status)
}

func TestDeleteControl_NotFound(t *testing.T) {
	mock := &handlers.MockControlService{
		DeleteControlFunc: func(ctx context.Context, id string) error {
			return models.ErrNotFound
		},
	}

	handler := handlers.NewControlHandler(mock)
	req := httptest.NewRequest("DELETE", "/controls/ghost", nil)
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)
	req = withURLParam(req, "id", "ghost")

	w := httptest.NewRecorder()
	handler.Delete(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestDashboardSummary(t *testing.T) {
	mock := &handlers.MockDashboardService{
		SummaryFunc: func(ctx context.Context) (*models.DashboardSummary, error) {
			return &models.DashboardSummary{
				TotalRisks:       7,
				RisksByStatus:    map[string]int{"open": 5, "closed": 2},
				RisksBySeverity:  map[string]int{"high": 3, "medium": 4},
				TotalControls:    4,
				ImplementedRatio: 0.5,
			}, nil
		},
	}

	handler := handlers.NewDashboardHandler(mock)
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req = handlers.WithAuthContext(req, "user123", models.RoleAuditor)

	w := httptest.NewRecorder()
	handler.Summary(w, req)

	var resp models.DashboardSummary
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 7, resp.TotalRisks)
	assert.Equal(t, 5, resp.RisksByStatus["open"])
	assert.InDelta(t, 0.5, resp.ImplementedRatio, 0.0001)
}
