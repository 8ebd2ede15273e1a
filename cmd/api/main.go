package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/attempts"
	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/background"
	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/metrics"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	level.Set(parseLevel(cfg.Server.LogLevel))
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)

	// Initialize database
	db, err := database.NewConnection(startupCtx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(startupCtx); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	userRepo := repositories.NewUserRepository(db.Pool)

	hasher, err := pkgauth.NewHasher(cfg.Auth.PasswordHashAlgorithm, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error("failed to initialize password hasher", slog.Any("error", err))
		os.Exit(1)
	}

	// Unknown emails are verified against this hash so they cost the same as known ones
	placeholderHash := cfg.Login.PlaceholderHash
	if placeholderHash == "" {
		placeholderHash, err = pkgauth.PlaceholderHash(hasher)
		if err != nil {
			logger.Error("failed to generate placeholder hash", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if err := pkgauth.CheckPlaceholder(hasher, placeholderHash); err != nil {
		logger.Error("invalid PLACEHOLDER_HASH", slog.Any("error", err))
		os.Exit(1)
	}

	tracker := attempts.New(attempts.Config{
		Limit:      cfg.Login.AttemptLimit,
		Window:     cfg.Login.WindowDuration,
		MaxTracked: cfg.Login.MaxTracked,
	})
	sweepManager := background.NewSweepManager(tracker, logger, cfg.Login.SweepInterval)

	tokenManager := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.SessionTokenExpiry, cfg.Auth.TokenIssuer)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	loginMetrics, err := metrics.NewLoginMetrics(metrics.Options{
		Registerer:        registry,
		TrackedIdentities: tracker.Len,
	})
	if err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, hasher, tracker, tokenManager, placeholderHash, logger)
	authService.SetTimingDelay(auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:      cfg.Login.TimingBaseDelay,
		RandomDelay:    cfg.Login.TimingJitter,
		DelayOnSuccess: cfg.Login.DelayOnSuccess,
	}))
	authService.SetAuditLogger(pkglogger.NewAuditLogger(logger))
	authService.SetMetrics(loginMetrics)

	userService := services.NewUserService(userRepo, hasher, logger)

	// Bootstrap first user if configured
	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		created, err := userService.EnsureUser(startupCtx, cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password)
		if err != nil {
			logger.Error("failed to ensure admin user", slog.Any("error", err))
		} else if created {
			logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(cfg.Admin.Email)))
		}
	}
	startupCancel()

	// Initialize handlers
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, ipConfig, cfg.Login.AttemptTimeout, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	healthHandler := handlers.NewHealthHandler(db, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(
		router,
		routes.Config{
			LoginRateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.LoginRatePerMin, IPConfig: ipConfig},
			UsersRateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.UsersRatePerMin, IPConfig: ipConfig},
		},
		authHandler,
		userHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Metrics are served on a separate internal listener when configured
	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsRouter := chi.NewRouter()
		metricsRouter.Use(middleware.Recoverer)
		routes.RegisterMetricsRoutes(metricsRouter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddr,
			Handler:      metricsRouter,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info("starting metrics server", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", slog.Any("error", err))
			}
		}()
	}

	// Start sweep task
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweepManager.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweepManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
