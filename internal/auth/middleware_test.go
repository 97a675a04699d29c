package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(captured **models.SessionClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = GetUserFromContext(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================================
// AuthMiddleware Tests
// ============================================================================

func TestAuthMiddleware_ValidBearerToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	token, err := tm.IssueSession(testUser(), false)
	require.NoError(t, err)

	var captured *models.SessionClaims
	handler := AuthMiddleware(tm)(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/risks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user123", captured.UserID)
	assert.Equal(t, models.RoleRiskOfficer, captured.Role)
}

func TestAuthMiddleware_SessionCookieFallback(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	token, err := tm.IssueSession(testUser(), false)
	require.NoError(t, err)

	var captured *models.SessionClaims
	handler := AuthMiddleware(tm)(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/risks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user123", captured.UserID)
}

func TestAuthMiddleware_MissingCredentials(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	handler := AuthMiddleware(tm)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/risks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	handler := AuthMiddleware(tm)(okHandler(nil))

	for _, header := range []string{"Bearer", "Basic dXNlcjpwYXNz", "Bearer  "} {
		req := httptest.NewRequest(http.MethodGet, "/risks", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q should be rejected", header)
	}
}

func TestAuthMiddleware_RejectsChallengeToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	challenge, err := tm.IssueMFAChallenge(testUser())
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/risks", nil)
	req.Header.Set("Authorization", "Bearer "+challenge)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// Role Middleware Tests
// ============================================================================

func TestRequireAnyRole_Allowed(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	token, err := tm.IssueSession(testUser(), false) // risk_officer
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(
		RequireAnyRole(models.RoleAdmin, models.RoleRiskOfficer)(okHandler(nil)))

	req := httptest.NewRequest(http.MethodPost, "/risks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)

	auditor := testUser()
	auditor.Role = models.RoleAuditor
	token, err := tm.IssueSession(auditor, false)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(RequireRole(models.RoleAdmin)(okHandler(nil)))

	req := httptest.NewRequest(http.MethodDelete, "/users/u1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_NoClaims(t *testing.T) {
	handler := RequireRole(models.RoleAdmin)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
