package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

// UserService defines the interface for user business logic
type UserService interface {
	ListUsers(ctx context.Context, params services.ListUsersParams) (*services.UserPage, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// ListUsers handles GET /users
//
// Query parameters: page_number, page_size, sort ("email:asc"), search ("name:john").
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pageNumber, ok := parsePositiveInt(query.Get("page_number"), 1)
	if !ok {
		pkghttp.WriteBadRequest(w, "page_number must be a positive integer")
		return
	}
	pageSize, ok := parsePositiveInt(query.Get("page_size"), services.DefaultPageSize)
	if !ok {
		pkghttp.WriteBadRequest(w, "page_size must be a positive integer")
		return
	}

	page, err := h.service.ListUsers(r.Context(), services.ListUsersParams{
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Sort:       query.Get("sort"),
		Search:     query.Get("search"),
	})
	if err != nil {
		h.logger.Error("failed to list users", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, page)
}

// parsePositiveInt returns def for an empty value and false for anything but a positive integer
func parsePositiveInt(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
