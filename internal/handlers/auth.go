package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// loginFailedMessage is the single body returned for every credential
// rejection: unknown email, wrong password, disabled account. One message,
// no enumeration.
const loginFailedMessage = "Invalid email or password"

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error)
	VerifyMFA(ctx context.Context, challengeToken, code, ipAddress, userAgent string) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, maxAge time.Duration, ipAddress string) error
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service        AuthServiceInterface
	ipConfig       *pkghttp.IPConfig
	cookieConfig   auth.CookieConfig
	sessionExpiry  time.Duration
	passwordMaxAge time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, cookieConfig auth.CookieConfig, sessionExpiry, passwordMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{
		service:        service,
		ipConfig:       ipConfig,
		cookieConfig:   cookieConfig,
		sessionExpiry:  sessionExpiry,
		passwordMaxAge: passwordMaxAge,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty" validate:"omitempty,len=6,numeric"`
}

// VerifyMFARequest represents the request body for MFA verification
type VerifyMFARequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,len=6,numeric"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.UserAgent()

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.MFACode, ipAddress, userAgent)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	if result.Token != "" {
		auth.SetSessionCookie(w, result.Token, h.sessionExpiry, h.cookieConfig)
	}
	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// VerifyMFA completes a login that answered with a challenge token
// @Summary Verify MFA code
// @Accept json
// @Param request body VerifyMFARequest true "MFA verification request"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/verify-mfa [post]
func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req VerifyMFARequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.VerifyMFA(r.Context(), req.ChallengeToken, req.Code, ipAddress, r.UserAgent())
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.sessionExpiry, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Logout clears the session cookie. Tokens are stateless, so the cookie is
// all there is to clear; header-based clients just drop the token.
// @Summary Log out
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword lets an authenticated user rotate their own password
// @Summary Change password
// @Accept json
// @Param request body ChangePasswordRequest true "Change password request"
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, h.passwordMaxAge, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "New password does not meet requirements")
		default:
			pkghttp.WriteInternalError(w, "An unexpected error occurred")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's profile
// @Summary Current user
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	user, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteTooManyRequests(w, "Account temporarily locked due to repeated failed attempts")
	case errors.Is(err, models.ErrMFAInvalidCode):
		pkghttp.WriteUnauthorized(w, "Invalid verification code")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, loginFailedMessage)
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
