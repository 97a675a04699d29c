package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/background"
	"github.com/ewhitmore/riskledger/internal/config"
	"github.com/ewhitmore/riskledger/internal/database"
	"github.com/ewhitmore/riskledger/internal/handlers"
	middlewareCustom "github.com/ewhitmore/riskledger/internal/middleware"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/repositories"
	"github.com/ewhitmore/riskledger/internal/routes"
	"github.com/ewhitmore/riskledger/internal/services"
	pkgauth "github.com/ewhitmore/riskledger/pkg/auth"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
	pkglogger "github.com/ewhitmore/riskledger/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db.Pool, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	resetTokenRepo := repositories.NewResetTokenRepository(db)
	riskRepo := repositories.NewRiskRepository(db)
	controlRepo := repositories.NewControlRepository(db)

	// Authentication core
	tokenManager := auth.NewTokenManager(
		cfg.Auth.TokenSecret,
		cfg.Auth.SessionExpiry,
		cfg.Auth.MFAChallengeExpiry,
	)

	totpManager, err := auth.NewTOTPManager(cfg.Auth.TOTPEncryptionKey, cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Outbound email: SES in production, log-only otherwise so local
	// development never needs AWS credentials.
	var emailService services.EmailService
	if cfg.Server.Env == "production" {
		emailService, err = services.NewAWSSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.ResetURLBase,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewLogEmailService(logger)
	}

	// Initialize services
	mfaService := services.NewMFAService(userRepo, totpManager, logger, auditLogger)
	authService := services.NewAuthService(
		userRepo,
		tokenManager,
		mfaService,
		timingDelay,
		services.LockoutPolicy{
			Threshold: cfg.Auth.LockoutThreshold,
			Duration:  cfg.Auth.LockoutDuration,
		},
		logger,
		auditLogger,
	)
	resetService := services.NewResetService(
		userRepo,
		resetTokenRepo,
		db,
		emailService,
		cfg.Auth.ResetTokenExpiry,
		cfg.Auth.PasswordMaxAge,
		logger,
		auditLogger,
	)
	userService := services.NewUserService(userRepo, cfg.Auth.PasswordMaxAge, logger, auditLogger)
	riskService := services.NewRiskService(riskRepo, logger)
	controlService := services.NewControlService(controlRepo, riskRepo, logger)
	dashboardService := services.NewDashboardService(riskRepo, controlRepo, logger)

	// Background sweep of expired reset tokens
	cleanupManager := background.NewCleanupManager(resetService, logger, cfg.Auth.CleanupInterval)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Server.Env == "production",
		SameSite: "strict",
	}

	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, ipConfig, cookieConfig, cfg.Auth.SessionExpiry, cfg.Auth.PasswordMaxAge),
		MFA:       handlers.NewMFAHandler(mfaService, ipConfig),
		Reset:     handlers.NewResetHandler(resetService, ipConfig),
		Users:     handlers.NewUserHandler(userService),
		Risks:     handlers.NewRiskHandler(riskService),
		Controls:  handlers.NewControlHandler(controlService),
		Dashboard: handlers.NewDashboardHandler(dashboardService),
	}

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	corsConfig := middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, h, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and
// ADMIN_PASSWORD are set. The seeded password starts expired, so the first
// login forces a change before the bootstrap value sticks around.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		Email:             adminEmail,
		PasswordHash:      hashedPassword,
		Name:              "Admin",
		Role:              models.RoleAdmin,
		Active:            true,
		PasswordExpiresAt: &now,
		PasswordChangedAt: &now,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
