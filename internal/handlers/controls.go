package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// ControlServiceInterface defines the interface for control logic
type ControlServiceInterface interface {
	GetControl(ctx context.Context, id string) (*models.Control, error)
	ListControls(ctx context.Context, riskID string) ([]*models.Control, error)
	CreateControl(ctx context.Context, riskID string, control *models.Control, createdBy string) (*models.Control, error)
	UpdateControl(ctx context.Context, id string, control *models.Control, updatedBy string) (*models.Control, error)
	DeleteControl(ctx context.Context, id string) error
}

// ControlHandler handles control HTTP requests
type ControlHandler struct {
	service ControlServiceInterface
}

// NewControlHandler creates a new ControlHandler
func NewControlHandler(service ControlServiceInterface) *ControlHandler {
	return &ControlHandler{service: service}
}

// ControlRequest represents the request body for creating or replacing a
// control
type ControlRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=200"`
	Description   string `json:"description" validate:"max=5000"`
	Type          string `json:"type" validate:"required,oneof=preventive detective corrective"`
	Effectiveness int    `json:"effectiveness,omitempty" validate:"omitempty,gte=1,lte=5"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=planned implemented retired"`
}

func (req *ControlRequest) toModel() *models.Control {
	return &models.Control{
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Effectiveness: req.Effectiveness,
		Status:        req.Status,
	}
}

// ListByRisk returns all controls attached to a risk
// @Summary List controls for a risk
// @Produce json
// @Success 200 {array} models.Control
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /risks/{id}/controls [get]
func (h *ControlHandler) ListByRisk(w http.ResponseWriter, r *http.Request) {
	controls, err := h.service.ListControls(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, controls)
}

// Get returns a single control
// @Summary Get control
// @Produce json
// @Success 200 {object} models.Control
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /controls/{id} [get]
func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	control, err := h.service.GetControl(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, control)
}

// Create attaches a control to a risk
// @Summary Create control
// @Accept json
// @Param request body ControlRequest true "Control"
// @Produce json
// @Success 201 {object} models.Control
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /risks/{id}/controls [post]
func (h *ControlHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	control, err := h.service.CreateControl(r.Context(), chi.URLParam(r, "id"), req.toModel(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, control)
}

// Update replaces a control's mutable fields
// @Summary Update control
// @Accept json
// @Param request body ControlRequest true "Control"
// @Produce json
// @Success 200 {object} models.Control
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /controls/{id} [put]
func (h *ControlHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	control, err := h.service.UpdateControl(r.Context(), chi.URLParam(r, "id"), req.toModel(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, control)
}

// Delete removes a control
// @Summary Delete control
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /controls/{id} [delete]
func (h *ControlHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteControl(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
