package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/ewhitmore/riskledger/internal/auth"
	"github.com/ewhitmore/riskledger/internal/handlers"
	"github.com/ewhitmore/riskledger/internal/middleware"
	"github.com/ewhitmore/riskledger/internal/models"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	MFA       *handlers.MFAHandler
	Reset     *handlers.ResetHandler
	Users     *handlers.UserHandler
	Risks     *handlers.RiskHandler
	Controls  *handlers.ControlHandler
	Dashboard *handlers.DashboardHandler
}

// RegisterRoutes registers all application routes.
//
// Reads are open to every authenticated role. Register writes require the
// risk_officer or admin role; account administration is admin only.
func RegisterRoutes(router chi.Router, h Handlers, tokenManager *auth.TokenManager) {
	loginLimit := middleware.LoginRateLimit()
	resetLimit := middleware.ResetRateLimit()
	writeLimit := middleware.RateLimitConfig{RequestsPerMinute: 60}

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", h.Auth.Login)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/verify-mfa", h.Auth.VerifyMFA)
	router.With(middleware.RateLimitByIP(resetLimit)).Post("/auth/reset/request", h.Reset.RequestReset)
	router.With(middleware.RateLimitByIP(resetLimit)).Post("/auth/reset/redeem", h.Reset.RedeemReset)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		// Session and account self-service
		r.Post("/auth/logout", h.Auth.Logout)
		r.Post("/auth/change-password", h.Auth.ChangePassword)
		r.Get("/auth/me", h.Auth.Me)
		r.Patch("/profile", h.Users.UpdateProfile)

		// MFA enrollment
		r.Post("/auth/mfa/setup", h.MFA.BeginSetup)
		r.Post("/auth/mfa/confirm", h.MFA.ConfirmSetup)
		r.Delete("/auth/mfa", h.MFA.Disable)
		r.Get("/auth/mfa", h.MFA.Status)

		// Register reads - any authenticated role
		r.Get("/dashboard", h.Dashboard.Summary)
		r.Get("/risks", h.Risks.List)
		r.Get("/risks/{id}", h.Risks.Get)
		r.Get("/risks/{id}/controls", h.Controls.ListByRisk)
		r.Get("/controls/{id}", h.Controls.Get)

		// Register writes - risk officers and admins
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAnyRole(models.RoleRiskOfficer, models.RoleAdmin))
			r.Use(middleware.RateLimitByUser(writeLimit))

			r.Post("/risks", h.Risks.Create)
			r.Put("/risks/{id}", h.Risks.Update)
			r.Delete("/risks/{id}", h.Risks.Delete)

			r.Post("/risks/{id}/controls", h.Controls.Create)
			r.Put("/controls/{id}", h.Controls.Update)
			r.Delete("/controls/{id}", h.Controls.Delete)
		})

		// Account administration - admin only
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))

			r.Get("/users", h.Users.List)
			r.Post("/users", h.Users.Create)
			r.Get("/users/{id}", h.Users.Get)
			r.Patch("/users/{id}", h.Users.Update)
			r.Delete("/users/{id}", h.Users.Delete)
			r.Post("/users/{id}/unlock", h.Users.Unlock)
		})
	})
}
