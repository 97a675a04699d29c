package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewhitmore/riskledger/internal/handlers"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
)

func TestCreateRisk_Success(t *testing.T) {
	mock := &handlers.MockRiskService{
		CreateRiskFunc: func(ctx context.Context, risk *models.Risk, createdBy string) (*services.RiskResponse, error) {
			assert.Equal(t, "user123", createdBy)
			risk.ID = "risk123"
			risk.Status = models.RiskStatusOpen
			return &services.RiskResponse{Risk: risk, Score: risk.Score(), Severity: risk.SeverityBand()}, nil
		},
	}

	handler := handlers.NewRiskHandler(mock)
	req := handlers.NewTestRequest(t, "POST", "/risks", handlers.RiskRequest{
		Title:      "Unpatched VPN appliance",
		Category:   "technology",
		Likelihood: 4,
		Impact:     5,
	})
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)

	w := httptest.NewRecorder()
	handler.Create(w, req)

	var resp services.RiskResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, 20, resp.Score)
	assert.Equal(t, models.SeverityCritical, resp.Severity)
}

func TestCreateRisk_OutOfRangeScores(t *testing.T) {
	handler := handlers.NewRiskHandler(&handlers.MockRiskService{})

	req := handlers.NewTestRequest(t, "POST", "/risks", handlers.RiskRequest{
		Title:      "Bad scale",
		Likelihood: 9,
		Impact:     3,
	})
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestListRisks_Filters(t *testing.T) {
	var gotFilter models.RiskFilter
	mock := &handlers.MockRiskService{
		ListRisksFunc: func(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*services.RiskResponse, error) {
			gotFilter = filter
			return []*services.RiskResponse{}, nil
		},
	}

	handler := handlers.NewRiskHandler(mock)
	req := httptest.NewRequest("GET", "/risks?status=open&category=technology", nil)
	req = handlers.WithAuthContext(req, "user123", models.RoleAuditor)

	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "open", gotFilter.Status)
	assert.Equal(t, "technology", gotFilter.Category)
}

func TestGetRisk_NotFound(t *testing.T) {
	handler := handlers.NewRiskHandler(&handlers.MockRiskService{})
	req := httptest.NewRequest("GET", "/risks/missing", nil)
	req = handlers.WithAuthContext(req, "user123", models.RoleAuditor)
	req = withURLParam(req, "id", "missing")

	w := httptest.NewRecorder()
	handler.Get(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestDeleteRisk_Success(t *testing.T) {
	deleted := ""
	mock := &handlers.MockRiskService{
		DeleteRiskFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	handler := handlers.NewRiskHandler(mock)
	req := httptest.NewRequest("DELETE", "/risks/risk123", nil)
	req = handlers.WithAuthContext(req, "user123", models.RoleRiskOfficer)
	req = withURLParam(req, "id", "risk123")

	w := httptest.NewRecorder()
	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "risk123", deleted)
}
