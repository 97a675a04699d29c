package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// RiskServiceInterface defines the interface for register entry logic
type RiskServiceInterface interface {
	GetRisk(ctx context.Context, id string) (*services.RiskResponse, error)
	ListRisks(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*services.RiskResponse, error)
	CreateRisk(ctx context.Context, risk *models.Risk, createdBy string) (*services.RiskResponse, error)
	UpdateRisk(ctx context.Context, id string, risk *models.Risk, updatedBy string) (*services.RiskResponse, error)
	DeleteRisk(ctx context.Context, id string) error
}

// RiskHandler handles risk register HTTP requests
type RiskHandler struct {
	service RiskServiceInterface
}

// NewRiskHandler creates a new RiskHandler
func NewRiskHandler(service RiskServiceInterface) *RiskHandler {
	return &RiskHandler{service: service}
}

// RiskRequest represents the request body for creating or replacing a risk
type RiskRequest struct {
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Description   string     `json:"description" validate:"max=5000"`
	Category      string     `json:"category" validate:"max=100"`
	Likelihood    int        `json:"likelihood" validate:"required,gte=1,lte=5"`
	Impact        int        `json:"impact" validate:"required,gte=1,lte=5"`
	Status        string     `json:"status,omitempty" validate:"omitempty,oneof=open mitigated accepted closed"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	TreatmentPlan string     `json:"treatment_plan" validate:"max=5000"`
	Tags          []string   `json:"tags,omitempty" validate:"max=20,dive,max=50"`
	ReviewDate    *time.Time `json:"review_date,omitempty"`
}

func (req *RiskRequest) toModel() *models.Risk {
	return &models.Risk{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Likelihood:    req.Likelihood,
		Impact:        req.Impact,
		Status:        req.Status,
		OwnerID:       req.OwnerID,
		TreatmentPlan: req.TreatmentPlan,
		Tags:          req.Tags,
		ReviewDate:    req.ReviewDate,
	}
}

// List returns risks matching the query filters
// @Summary List risks
// @Produce json
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param owner_id query string false "Filter by owner"
// @Success 200 {array} services.RiskResponse
// @Router /risks [get]
func (h *RiskHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 50)

	filter := models.RiskFilter{
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
		OwnerID:  r.URL.Query().Get("owner_id"),
	}

	risks, err := h.service.ListRisks(r.Context(), filter, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, risks)
}

// Get returns a single risk with its derived score
// @Summary Get risk
// @Produce json
// @Success 200 {object} services.RiskResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /risks/{id} [get]
func (h *RiskHandler) Get(w http.ResponseWriter, r *http.Request) {
	risk, err := h.service.GetRisk(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, risk)
}

// Create adds a new register entry
// @Summary Create risk
// @Accept json
// @Param request body RiskRequest true "Risk"
// @Produce json
// @Success 201 {object} services.RiskResponse
// @Router /risks [post]
func (h *RiskHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	risk, err := h.service.CreateRisk(r.Context(), req.toModel(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, risk)
}

// Update replaces a register entry's mutable fields
// @Summary Update risk
// @Accept json
// @Param request body RiskRequest true "Risk"
// @Produce json
// @Success 200 {object} services.RiskResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /risks/{id} [put]
func (h *RiskHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	risk, err := h.service.UpdateRisk(r.Context(), chi.URLParam(r, "id"), req.toModel(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, risk)
}

// Delete removes a register entry
// @Summary Delete risk
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /risks/{id} [delete]
func (h *RiskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRisk(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
