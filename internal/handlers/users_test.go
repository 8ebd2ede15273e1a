package handlers_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers_PassesQuery(t *testing.T) {
	var got services.ListUsersParams
	mockUsers := &handlers.MockUserService{
		ListUsersFunc: func(ctx context.Context, params services.ListUsersParams) (*services.UserPage, error) {
			got = params
			return &services.UserPage{
				PageNumber:      2,
				PageSize:        5,
				Count:           1,
				TotalPages:      2,
				HasPreviousPage: true,
				Data:            []services.UserSummary{{ID: "u1", Name: "John", Email: "john@example.com"}},
			}, nil
		},
	}

	req := httptest.NewRequest("GET", "/users?page_number=2&page_size=5&sort=name:desc&search=name:jo", nil)
	w := httptest.NewRecorder()
	handlers.NewUserHandler(mockUsers, slog.Default()).ListUsers(w, req)

	assert.Equal(t, services.ListUsersParams{PageNumber: 2, PageSize: 5, Sort: "name:desc", Search: "name:jo"}, got)

	var page services.UserPage
	handlers.AssertJSONResponse(t, w, http.StatusOK, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "john@example.com", page.Data[0].Email)
	assert.True(t, page.HasPreviousPage)
	assert.False(t, page.HasNextPage)
}

func TestListUsers_Defaults(t *testing.T) {
	var got services.ListUsersParams
	mockUsers := &handlers.MockUserService{
		ListUsersFunc: func(ctx context.Context, params services.ListUsersParams) (*services.UserPage, error) {
			got = params
			return &services.UserPage{Data: []services.UserSummary{}}, nil
		},
	}

	w := httptest.NewRecorder()
	handlers.NewUserHandler(mockUsers, slog.Default()).ListUsers(w, httptest.NewRequest("GET", "/users", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, got.PageNumber)
	assert.Equal(t, services.DefaultPageSize, got.PageSize)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestListUsers_InvalidPagination(t *testing.T) {
	for _, query := range []string{"page_number=0", "page_number=abc", "page_size=-1", "page_size=ten"} {
		t.Run(query, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.NewUserHandler(&handlers.MockUserService{}, slog.Default()).
				ListUsers(w, httptest.NewRequest("GET", "/users?"+query, nil))

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
}

func TestListUsers_ServiceError(t *testing.T) {
	mockUsers := &handlers.MockUserService{
		ListUsersFunc: func(ctx context.Context, params services.ListUsersParams) (*services.UserPage, error) {
			return nil, errors.Join(models.ErrInternalServer, errors.New("db down"))
		},
	}

	w := httptest.NewRecorder()
	handlers.NewUserHandler(mockUsers, slog.Default()).ListUsers(w, httptest.NewRequest("GET", "/users", nil))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(&handlers.MockHealthChecker{}, slog.Default()).
			Health(w, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(&handlers.MockHealthChecker{Err: errors.New("ping failed")}, slog.Default()).
			Health(w, httptest.NewRequest("GET", "/health", nil))

		handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
	})
}
