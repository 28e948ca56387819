package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/course-platform/internal/api/http/handlers"
	"github.com/spec-kit/course-platform/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health             *handlers.HealthHandler
	Auth               *handlers.AuthHandler
	Content            *handlers.ContentHandler
	AuthMiddleware     *auth.AuthMiddleware
	RateLimitPerMinute int
}

// RegisterRoutes wires HTTP routes. The authentication gate runs for every
// route registered after it; bypassed prefixes pass through untouched.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	app.Use(cfg.AuthMiddleware.Handle)

	authGroup := app.Group("/api/auth", authRateLimiter(cfg.RateLimitPerMinute))
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/verify-otp", cfg.Auth.VerifyOTP)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Post("/logout", auth.RequireAuthenticated(), cfg.Auth.Logout)

	secure := app.Group("/api/secure/content", auth.RequireAuthenticated())
	secure.Get("/video/:id", cfg.Content.StreamVideo)
	secure.Get("/document/:id", cfg.Content.StreamDocument)
}
