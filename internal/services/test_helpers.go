package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/models"
	pkgauth "github.com/ewhitmore/riskledger/pkg/auth"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

// MockCredentialStore implements CredentialStore for testing
type MockCredentialStore struct {
	GetByEmailFunc              func(ctx context.Context, email string) (*models.User, error)
	GetByIDFunc                 func(ctx context.Context, id string) (*models.User, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, id string) (int, error)
	SetLockoutFunc              func(ctx context.Context, id string, until *time.Time) error
	ClearFailedAttemptsFunc     func(ctx context.Context, id string) error
	UpdatePasswordHashFunc      func(ctx context.Context, id, hash string, expiresAt time.Time) error
	RecordLoginFunc             func(ctx context.Context, id string) error
}

func (m *MockCredentialStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialStore) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockCredentialStore) SetLockout(ctx context.Context, id string, until *time.Time) error {
	if m.SetLockoutFunc != nil {
		return m.SetLockoutFunc(ctx, id, until)
	}
	return nil
}

func (m *MockCredentialStore) ClearFailedAttempts(ctx context.Context, id string) error {
	if m.ClearFailedAttemptsFunc != nil {
		return m.ClearFailedAttemptsFunc(ctx, id)
	}
	return nil
}

func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, id, hash string, expiresAt time.Time) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, hash, expiresAt)
	}
	return nil
}

func (m *MockCredentialStore) RecordLogin(ctx context.Context, id string) error {
	if m.RecordLoginFunc != nil {
		return m.RecordLoginFunc(ctx, id)
	}
	return nil
}

// MockMFAStore implements MFAStore for testing
type MockMFAStore struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	SetMFAPendingSecretFunc func(ctx context.Context, id string, secretEnc, nonce []byte) error
	SetMFASecretFunc        func(ctx context.Context, id string, secretEnc, nonce []byte) error
	ClearMFAFunc            func(ctx context.Context, id string) error
}

func (m *MockMFAStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockMFAStore) SetMFAPendingSecret(ctx context.Context, id string, secretEnc, nonce []byte) error {
	if m.SetMFAPendingSecretFunc != nil {
		return m.SetMFAPendingSecretFunc(ctx, id, secretEnc, nonce)
	}
	return nil
}

func (m *MockMFAStore) SetMFASecret(ctx context.Context, id string, secretEnc, nonce []byte) error {
	if m.SetMFASecretFunc != nil {
		return m.SetMFASecretFunc(ctx, id, secretEnc, nonce)
	}
	return nil
}

func (m *MockMFAStore) ClearMFA(ctx context.Context, id string) error {
	if m.ClearMFAFunc != nil {
		return m.ClearMFAFunc(ctx, id)
	}
	return nil
}

// MockMFAValidator implements MFASecretReader for testing
type MockMFAValidator struct {
	ValidateConfirmedCodeFunc func(user *models.User, code string) (bool, error)
}

func (m *MockMFAValidator) ValidateConfirmedCode(user *models.User, code string) (bool, error) {
	if m.ValidateConfirmedCodeFunc != nil {
		return m.ValidateConfirmedCodeFunc(user, code)
	}
	return false, nil
}

// MockResetUserStore implements ResetUserStore for testing
type MockResetUserStore struct {
	GetByEmailFunc           func(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHashTxFunc func(ctx context.Context, tx pgx.Tx, id, hash string, expiresAt time.Time) error
}

func (m *MockResetUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockResetUserStore) UpdatePasswordHashTx(ctx context.Context, tx pgx.Tx, id, hash string, expiresAt time.Time) error {
	if m.UpdatePasswordHashTxFunc != nil {
		return m.UpdatePasswordHashTxFunc(ctx, tx, id, hash, expiresAt)
	}
	return nil
}

// MockResetTokenStore implements ResetTokenStore for testing
type MockResetTokenStore struct {
	CreateFunc         func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.ResetToken, error)
	GetValidByHashFunc func(ctx context.Context, tokenHash string) (*models.ResetToken, error)
	MarkUsedTxFunc     func(ctx context.Context, tx pgx.Tx, id string) error
	CleanupExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockResetTokenStore) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.ResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, expiresAt)
	}
	return &models.ResetToken{ID: "token123", UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
}

func (m *MockResetTokenStore) GetValidByHash(ctx context.Context, tokenHash string) (*models.ResetToken, error) {
	if m.GetValidByHashFunc != nil {
		return m.GetValidByHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockResetTokenStore) MarkUsedTx(ctx context.Context, tx pgx.Tx, id string) error {
	if m.MarkUsedTxFunc != nil {
		return m.MarkUsedTxFunc(ctx, tx, id)
	}
	return nil
}

func (m *MockResetTokenStore) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx)
	}
	return 0, nil
}

// MockTxRunner implements TxRunner for testing. The callback runs with a
// nil transaction; mocks on the other side ignore it.
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.User, error)
	ListFunc                func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc              func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc              func(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error)
	DeleteFunc              func(ctx context.Context, id string) error
	SetLockoutFunc          func(ctx context.Context, id string, until *time.Time) error
	ClearFailedAttemptsFunc func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, patch)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetLockout(ctx context.Context, id string, until *time.Time) error {
	if m.SetLockoutFunc != nil {
		return m.SetLockoutFunc(ctx, id, until)
	}
	return nil
}

func (m *MockUserRepository) ClearFailedAttempts(ctx context.Context, id string) error {
	if m.ClearFailedAttemptsFunc != nil {
		return m.ClearFailedAttemptsFunc(ctx, id)
	}
	return nil
}

// MockRiskRepository implements RiskRepository for testing
type MockRiskRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Risk, error)
	ListFunc    func(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*models.Risk, error)
	CreateFunc  func(ctx context.Context, risk *models.Risk) (*models.Risk, error)
	UpdateFunc  func(ctx context.Context, id string, risk *models.Risk) (*models.Risk, error)
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *MockRiskRepository) GetByID(ctx context.Context, id string) (*models.Risk, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockRiskRepository) List(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*models.Risk, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter, limit, offset)
	}
	return []*models.Risk{}, nil
}

func (m *MockRiskRepository) Create(ctx context.Context, risk *models.Risk) (*models.Risk, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, risk)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRiskRepository) Update(ctx context.Context, id string, risk *models.Risk) (*models.Risk, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, risk)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRiskRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockControlRepository implements ControlRepository for testing
type MockControlRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.Control, error)
	ListByRiskFunc func(ctx context.Context, riskID string) ([]*models.Control, error)
	CreateFunc     func(ctx context.Context, control *models.Control) (*models.Control, error)
	UpdateFunc     func(ctx context.Context, id string, control *models.Control) (*models.Control, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *MockControlRepository) GetByID(ctx context.Context, id string) (*models.Control, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockControlRepository) ListByRisk(ctx context.Context, riskID string) ([]*models.Control, error) {
	if m.ListByRiskFunc != nil {
		return m.ListByRiskFunc(ctx, riskID)
	}
	return []*models.Control{}, nil
}

func (m *MockControlRepository) Create(ctx context.Context, control *models.Control) (*models.Control, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, control)
	}
	return nil, models.ErrInternalServer
}

func (m *MockControlRepository) Update(ctx context.Context, id string, control *models.Control) (*models.Control, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, control)
	}
	return nil, models.ErrInternalServer
}

func (m *MockControlRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// NewTestUser creates an active user with the given password hashed for
// real, so VerifyPassword behaves as in production.
func NewTestUser(id, email, password string) *models.User {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}

	now := time.Now()
	expiry := now.Add(90 * 24 * time.Hour)
	return &models.User{
		ID:                id,
		Email:             email,
		PasswordHash:      hash,
		Name:              "Test User",
		Role:              models.RoleRiskOfficer,
		Active:            true,
		PasswordExpiresAt: &expiry,
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func newTestAuthService(store CredentialStore, mfa MFASecretReader) *AuthService {
	logger := slog.Default()
	return NewAuthService(
		store,
		auth.NewTokenManager("test-secret-for-auth-service-tests", 12*time.Hour, 5*time.Minute),
		mfa,
		auth.NewTimingDelay(auth.TimingConfig{}),
		LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute},
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}
