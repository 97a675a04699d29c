package handlers

import (
	"context"
	"net/http"

	"github.com/ewhitmore/riskledger/internal/models"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// DashboardServiceInterface defines the interface for the summary view
type DashboardServiceInterface interface {
	Summary(ctx context.Context) (*models.DashboardSummary, error)
}

// DashboardHandler serves the aggregate register view
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary returns register aggregates for the landing page
// @Summary Dashboard summary
// @Produce json
// @Success 200 {object} models.DashboardSummary
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, summary)
}
