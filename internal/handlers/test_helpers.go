package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds session claims to the request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, userID, role string) *http.Request {
	claims := &models.SessionClaims{
		Type:   models.TokenTypeSession,
		UserID: userID,
		Role:   role,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error)
	VerifyMFAFunc      func(ctx context.Context, challengeToken, code, ipAddress, userAgent string) (*services.LoginResult, error)
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string, maxAge time.Duration, ipAddress string) error
	MeFunc             func(ctx context.Context, userID string) (*services.UserResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, mfaCode, ipAddress, userAgent)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) VerifyMFA(ctx context.Context, challengeToken, code, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.VerifyMFAFunc != nil {
		return m.VerifyMFAFunc(ctx, challengeToken, code, ipAddress, userAgent)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, maxAge time.Duration, ipAddress string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword, maxAge, ipAddress)
	}
	return nil
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc != nil {
		return m.MeFunc(ctx, userID)
	}
	return nil, models.ErrUnauthorized
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	BeginSetupFunc   func(ctx context.Context, userID string) (*services.MFASetupResponse, error)
	ConfirmSetupFunc func(ctx context.Context, userID, code, ipAddress string) error
	DisableFunc      func(ctx context.Context, userID, password, code, ipAddress string) error
	StatusFunc       func(ctx context.Context, userID string) (*services.MFAStatusResponse, error)
}

func (m *MockMFAService) BeginSetup(ctx context.Context, userID string) (*services.MFASetupResponse, error) {
	if m.BeginSetupFunc != nil {
		return m.BeginSetupFunc(ctx, userID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMFAService) ConfirmSetup(ctx context.Context, userID, code, ipAddress string) error {
	if m.ConfirmSetupFunc != nil {
		return m.ConfirmSetupFunc(ctx, userID, code, ipAddress)
	}
	return nil
}

func (m *MockMFAService) Disable(ctx context.Context, userID, password, code, ipAddress string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, userID, password, code, ipAddress)
	}
	return nil
}

func (m *MockMFAService) Status(ctx context.Context, userID string) (*services.MFAStatusResponse, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return &services.MFAStatusResponse{}, nil
}

// MockResetService implements ResetServiceInterface for testing
type MockResetService struct {
	RequestResetFunc func(ctx context.Context, email, ipAddress string) error
	RedeemResetFunc  func(ctx context.Context, token, newPassword, ipAddress string) error
}

func (m *MockResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, ipAddress)
	}
	return nil
}

func (m *MockResetService) RedeemReset(ctx context.Context, token, newPassword, ipAddress string) error {
	if m.RedeemResetFunc != nil {
		return m.RedeemResetFunc(ctx, token, newPassword, ipAddress)
	}
	return nil
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserFunc       func(ctx context.Context, id string) (*services.UserResponse, error)
	ListUsersFunc     func(ctx context.Context, limit, offset int) ([]*services.UserResponse, error)
	CreateUserFunc    func(ctx context.Context, email, name, role, password, createdBy string) (*services.UserResponse, error)
	UpdateUserFunc    func(ctx context.Context, id string, patch *models.UserPatch, updatedBy string) (*services.UserResponse, error)
	DeleteUserFunc    func(ctx context.Context, id, requestedBy string) error
	UnlockFunc        func(ctx context.Context, id, requestedBy string) error
	UpdateProfileFunc func(ctx context.Context, userID string, name, avatarURL *string) (*services.UserResponse, error)
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*services.UserResponse, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*services.UserResponse, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*services.UserResponse{}, nil
}

func (m *MockUserService) CreateUser(ctx context.Context, email, name, role, password, createdBy string) (*services.UserResponse, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, email, name, role, password, createdBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) UpdateUser(ctx context.Context, id string, patch *models.UserPatch, updatedBy string) (*services.UserResponse, error) {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, patch, updatedBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) DeleteUser(ctx context.Context, id, requestedBy string) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id, requestedBy)
	}
	return nil
}

func (m *MockUserService) Unlock(ctx context.Context, id, requestedBy string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, id, requestedBy)
	}
	return nil
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*services.UserResponse, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, name, avatarURL)
	}
	return nil, models.ErrInternalServer
}

// MockRiskService implements RiskServiceInterface for testing
type MockRiskService struct {
	GetRiskFunc    func(ctx context.Context, id string) (*services.RiskResponse, error)
	ListRisksFunc  func(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*services.RiskResponse, error)
	CreateRiskFunc func(ctx context.Context, risk *models.Risk, createdBy string) (*services.RiskResponse, error)
	UpdateRiskFunc func(ctx context.Context, id string, risk *models.Risk, updatedBy string) (*services.RiskResponse, error)
	DeleteRiskFunc func(ctx context.Context, id string) error
}

func (m *MockRiskService) GetRisk(ctx context.Context, id string) (*services.RiskResponse, error) {
	if m.GetRiskFunc != nil {
		return m.GetRiskFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockRiskService) ListRisks(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*services.RiskResponse, error) {
	if m.ListRisksFunc != nil {
		return m.ListRisksFunc(ctx, filter, limit, offset)
	}
	return []*services.RiskResponse{}, nil
}

func (m *MockRiskService) CreateRisk(ctx context.Context, risk *models.Risk, createdBy string) (*services.RiskResponse, error) {
	if m.CreateRiskFunc != nil {
		return m.CreateRiskFunc(ctx, risk, createdBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRiskService) UpdateRisk(ctx context.Context, id string, risk *models.Risk, updatedBy string) (*services.RiskResponse, error) {
	if m.UpdateRiskFunc != nil {
		return m.UpdateRiskFunc(ctx, id, risk, updatedBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRiskService) DeleteRisk(ctx context.Context, id string) error {
	if m.DeleteRiskFunc != nil {
		return m.DeleteRiskFunc(ctx, id)
	}
	return nil
}

// MockControlService implements ControlServiceInterface for testing
type MockControlService struct {
	GetControlFunc    func(ctx context.Context, id string) (*models.Control, error)
	ListControlsFunc  func(ctx context.Context, riskID string) ([]*models.Control, error)
	CreateControlFunc func(ctx context.Context, riskID string, control *models.Control, createdBy string) (*models.Control, error)
	UpdateControlFunc func(ctx context.Context, id string, control *models.Control, updatedBy string) (*models.Control, error)
	DeleteControlFunc func(ctx context.Context, id string) error
}

func (m *MockControlService) GetControl(ctx context.Context, id string) (*models.Control, error) {
	if m.GetControlFunc != nil {
		return m.GetControlFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockControlService) ListControls(ctx context.Context, riskID string) ([]*models.Control, error) {
	if m.ListControlsFunc != nil {
		return m.ListControlsFunc(ctx, riskID)
	}
	return []*models.Control{}, nil
}

func (m *MockControlService) CreateControl(ctx context.Context, riskID string, control *models.Control, createdBy string) (*models.Control, error) {
	if m.CreateControlFunc != nil {
		return m.CreateControlFunc(ctx, riskID, control, createdBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockControlService) UpdateControl(ctx context.Context, id string, control *models.Control, updatedBy string) (*models.Control, error) {
	if m.UpdateControlFunc != nil {
		return m.UpdateControlFunc(ctx, id, control, updatedBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockControlService) DeleteControl(ctx context.Context, id string) error {
	if m.DeleteControlFunc != nil {
		return m.DeleteControlFunc(ctx, id)
	}
	return nil
}

// MockDashboardService implements DashboardServiceInterface for testing
type MockDashboardService struct {
	SummaryFunc func(ctx context.Context) (*models.DashboardSummary, error)
}

func (m *MockDashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx)
	}
	return &models.DashboardSummary{}, nil
}
