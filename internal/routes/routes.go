package routes

import (
	"net/http"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Config holds per-route limits
type Config struct {
	LoginRateLimit middleware.RateLimitConfig
	UsersRateLimit middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	cfg Config,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
	tokenValidator auth.TokenValidator,
) {
	// Public routes - no authentication required
	router.Get("/health", healthHandler.Health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(cfg.LoginRateLimit))
		r.Post("/login", authHandler.Login)
		r.Post("/auth/login", authHandler.Login)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenValidator))
		r.Use(middleware.RateLimitByUser(cfg.UsersRateLimit))

		r.Get("/users", userHandler.ListUsers)
	})
}

// RegisterMetricsRoutes mounts the metrics endpoint. It belongs on an internal
// listener, never on the public router.
func RegisterMetricsRoutes(router chi.Router, metricsHandler http.Handler) {
	router.Method(http.MethodGet, "/metrics", metricsHandler)
}
