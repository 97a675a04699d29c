package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewhitmore/riskledger/internal/models"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// ResetServiceInterface defines the interface for the password reset flow
type ResetServiceInterface interface {
	RequestReset(ctx context.Context, email, ipAddress string) error
	RedeemReset(ctx context.Context, token, newPassword, ipAddress string) error
}

// ResetHandler handles forgot-password HTTP requests
type ResetHandler struct {
	service  ResetServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewResetHandler creates a new ResetHandler
func NewResetHandler(service ResetServiceInterface, ipConfig *pkghttp.IPConfig) *ResetHandler {
	return &ResetHandler{service: service, ipConfig: ipConfig}
}

// RequestResetRequest represents the request body for starting a reset
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RedeemResetRequest represents the request body for completing a reset
type RedeemResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// resetRequestedMessage is returned for every reset request regardless of
// whether the account exists.
const resetRequestedMessage = "If an account exists for that address, a reset email has been sent"

// RequestReset starts the forgot-password flow
// @Summary Request password reset
// @Accept json
// @Param request body RequestResetRequest true "Reset request"
// @Produce json
// @Success 202 {object} map[string]string
// @Router /auth/reset/request [post]
func (h *ResetHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	// The service never reports whether the account exists.
	_ = h.service.RequestReset(r.Context(), req.Email, ipAddress)

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{"message": resetRequestedMessage})
}

// RedeemReset completes the flow with a token from the email
// @Summary Redeem password reset token
// @Accept json
// @Param request body RedeemResetRequest true "Redeem request"
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/reset/redeem [post]
func (h *ResetHandler) RedeemReset(w http.ResponseWriter, r *http.Request) {
	var req RedeemResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.RedeemReset(r.Context(), req.Token, req.NewPassword, ipAddress); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid or expired reset token")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "New password does not meet requirements")
		default:
			pkghttp.WriteInternalError(w, "An unexpected error occurred")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
