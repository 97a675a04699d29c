package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/database"
	"github.com/ewhitmore/riskledger/internal/handlers"
	middlewareCustom "github.com/ewhitmore/riskledger/internal/middleware"
	"github.com/ewhitmore/riskledger/internal/repositories"
	"github.com/ewhitmore/riskledger/internal/routes"
	"github.com/ewhitmore/riskledger/internal/services"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

// SentEmail represents a captured password reset email
type SentEmail struct {
	To    string
	Token string
}

// CaptureEmailService records reset emails for test assertions instead of
// sending them.
type CaptureEmailService struct {
	mu   sync.Mutex
	Sent []SentEmail
}

func (c *CaptureEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, SentEmail{To: email, Token: token})
	return nil
}

// LastEmail returns the most recent captured email, or nil.
func (c *CaptureEmailService) LastEmail() *SentEmail {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return nil
	}
	return &c.Sent[len(c.Sent)-1]
}

// TestServer wraps httptest.Server with a real database and captured email
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *CaptureEmailService
	TokenManager *auth.TokenManager
	TOTPManager  *auth.TOTPManager
}

// testTOTPKey is a fixed 32-byte AES key for the test environment only.
var testTOTPKey = []byte("0123456789abcdef0123456789abcdef")

// NewTestServer initializes the complete HTTP stack against a real database
// with email capture. Timing delays are zeroed so tests run fast.
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	auditLogger := pkglogger.NewAuditLogger(logger)

	userRepo := repositories.NewUserRepository(db)
	resetTokenRepo := repositories.NewResetTokenRepository(db)
	riskRepo := repositories.NewRiskRepository(db)
	controlRepo := repositories.NewControlRepository(db)

	tokenManager := auth.NewTokenManager("integration-test-secret-32-chars!", 12*time.Hour, 5*time.Minute)
	totpManager, err := auth.NewTOTPManager(testTOTPKey, "RiskLedger-Test")
	if err != nil {
		return nil, err
	}
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	emailService := &CaptureEmailService{}

	mfaService := services.NewMFAService(userRepo, totpManager, logger, auditLogger)
	authService := services.NewAuthService(
		userRepo,
		tokenManager,
		mfaService,
		timingDelay,
		services.LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute},
		logger,
		auditLogger,
	)
	resetService := services.NewResetService(
		userRepo,
		resetTokenRepo,
		db,
		emailService,
		1*time.Hour,
		90*24*time.Hour,
		logger,
		auditLogger,
	)
	userService := services.NewUserService(userRepo, 90*24*time.Hour, logger, auditLogger)
	riskService := services.NewRiskService(riskRepo, logger)
	controlService := services.NewControlService(controlRepo, riskRepo, logger)
	dashboardService := services.NewDashboardService(riskRepo, controlRepo, logger)

	ipConfig := &pkghttp.IPConfig{}
	cookieConfig := auth.CookieConfig{SameSite: "strict"}

	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, ipConfig, cookieConfig, 12*time.Hour, 90*24*time.Hour),
		MFA:       handlers.NewMFAHandler(mfaService, ipConfig),
		Reset:     handlers.NewResetHandler(resetService, ipConfig),
		Users:     handlers.NewUserHandler(userService),
		Risks:     handlers.NewRiskHandler(riskService),
		Controls:  handlers.NewControlHandler(controlService),
		Dashboard: handlers.NewDashboardHandler(dashboardService),
	}

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	router.Use(chiMiddleware.Recoverer)
	routes.RegisterRoutes(router, h, tokenManager)

	return &TestServer{
		Server:       httptest.NewServer(router),
		DB:           db,
		EmailService: emailService,
		TokenManager: tokenManager,
		TOTPManager:  totpManager,
	}, nil
}

// Close shuts down the HTTP server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// PostJSON sends a JSON POST request, optionally with a bearer token
func (ts *TestServer) PostJSON(path string, body interface{}, token string) (*http.Response, error) {
	return ts.doJSON("POST", path, body, token)
}

// GetJSON sends a GET request, optionally with a bearer token
func (ts *TestServer) GetJSON(path, token string) (*http.Response, error) {
	return ts.doJSON("GET", path, nil, token)
}

func (ts *TestServer) doJSON(method, path string, body interface{}, token string) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return http.DefaultClient.Do(req)
}

// DecodeBody decodes a JSON response body into target and closes it
func DecodeBody(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
