package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

const (
	maxLoginBodyBytes = 1 << 16

	msgTooManyAttempts  = "Too many failed login attempts. Please try again later."
	msgWrongCredentials = "Wrong email or password"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service        AuthServiceInterface
	ipConfig       *pkghttp.IPConfig
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. A positive attemptTimeout bounds
// how long one login may take before it is abandoned.
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, attemptTimeout time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:        service,
		ipConfig:       ipConfig,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Normalize email before validating so surrounding spaces are not rejected
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	if h.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.attemptTimeout)
		defer cancel()
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(ctx, req.Email, req.Password, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			pkghttp.WriteForbidden(w, msgTooManyAttempts)
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, msgWrongCredentials)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			pkghttp.WriteServiceUnavailable(w, "Login could not be completed. Please try again.")
		default:
			h.logger.Error("login failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
