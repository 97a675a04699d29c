package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// UserServiceInterface defines the interface for account administration
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*services.UserResponse, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*services.UserResponse, error)
	CreateUser(ctx context.Context, email, name, role, password, createdBy string) (*services.UserResponse, error)
	UpdateUser(ctx context.Context, id string, patch *models.UserPatch, updatedBy string) (*services.UserResponse, error)
	DeleteUser(ctx context.Context, id, requestedBy string) error
	Unlock(ctx context.Context, id, requestedBy string) error
	UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*services.UserResponse, error)
}

// UserHandler handles user management HTTP requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUserRequest represents the request body for provisioning an account
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Role     string `json:"role" validate:"required,oneof=admin risk_officer auditor"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest represents the request body for an admin user patch.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Role   *string `json:"role,omitempty" validate:"omitempty,oneof=admin risk_officer auditor"`
	Active *bool   `json:"active,omitempty"`
}

// UpdateProfileRequest represents the request body for self-service profile
// updates
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=500"`
}

// List returns a page of users
// @Summary List users
// @Produce json
// @Success 200 {array} services.UserResponse
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 50)

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, users)
}

// Get returns a single user
// @Summary Get user
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// Create provisions a new account
// @Summary Create user
// @Accept json
// @Param request body CreateUserRequest true "Create user request"
// @Produce json
// @Success 201 {object} services.UserResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Email, req.Name, req.Role, req.Password, claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// Update applies an admin patch to an account
// @Summary Update user
// @Accept json
// @Param request body UpdateUserRequest true "Update user request"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id} [patch]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	patch := &models.UserPatch{
		Name:   req.Name,
		Role:   req.Role,
		Active: req.Active,
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), patch, claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// Delete removes an account
// @Summary Delete user
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unlock clears an account lockout early
// @Summary Unlock user
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{id}/unlock [post]
func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.service.Unlock(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateProfile lets the authenticated user edit their own name and avatar
// @Summary Update own profile
// @Accept json
// @Param request body UpdateProfileRequest true "Profile update request"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Router /profile [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), claims.UserID, req.Name, req.AvatarURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// paginationParams reads limit and offset query parameters, falling back to
// defaultLimit.
func paginationParams(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
