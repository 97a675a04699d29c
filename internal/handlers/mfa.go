package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// MFAServiceInterface defines the interface for MFA enrollment logic
type MFAServiceInterface interface {
	BeginSetup(ctx context.Context, userID string) (*services.MFASetupResponse, error)
	ConfirmSetup(ctx context.Context, userID, code, ipAddress string) error
	Disable(ctx context.Context, userID, password, code, ipAddress string) error
	Status(ctx context.Context, userID string) (*services.MFAStatusResponse, error)
}

// MFAHandler handles MFA enrollment HTTP requests
type MFAHandler struct {
	service  MFAServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAServiceInterface, ipConfig *pkghttp.IPConfig) *MFAHandler {
	return &MFAHandler{service: service, ipConfig: ipConfig}
}

// ConfirmMFARequest represents the request body for confirming MFA setup
type ConfirmMFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// DisableMFARequest represents the request body for disabling MFA
type DisableMFARequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// BeginSetup starts MFA enrollment for the authenticated user
// @Summary Begin MFA setup
// @Produce json
// @Success 200 {object} services.MFASetupResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /auth/mfa/setup [post]
func (h *MFAHandler) BeginSetup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp, err := h.service.BeginSetup(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "MFA is already enabled")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ConfirmSetup verifies the first code and enables MFA
// @Summary Confirm MFA setup
// @Accept json
// @Param request body ConfirmMFARequest true "Confirmation request"
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/mfa/confirm [post]
func (h *MFAHandler) ConfirmSetup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ConfirmMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.ConfirmSetup(r.Context(), claims.UserID, req.Code, ipAddress); err != nil {
		h.writeMFAError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Disable turns MFA off for the authenticated user
// @Summary Disable MFA
// @Accept json
// @Param request body DisableMFARequest true "Disable request"
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/mfa [delete]
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req DisableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.Disable(r.Context(), claims.UserID, req.Password, req.Code, ipAddress); err != nil {
		h.writeMFAError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status reports the authenticated user's MFA state
// @Summary MFA status
// @Produce json
// @Success 200 {object} services.MFAStatusResponse
// @Router /auth/mfa [get]
func (h *MFAHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

func (h *MFAHandler) writeMFAError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMFAInvalidCode):
		pkghttp.WriteUnauthorized(w, "Invalid verification code")
	case errors.Is(err, models.ErrMFANotEnrolled):
		pkghttp.WriteBadRequest(w, "MFA is not set up for this account")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Unauthorized")
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
