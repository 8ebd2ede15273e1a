package routes_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret-0123456789abcdef"

func newRouter(t *testing.T, loginPerMin int) (http.Handler, *auth.TokenManager) {
	t.Helper()

	tm := auth.NewTokenManager(testSecret, time.Hour, "gatekeeper")
	authSvc := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*services.LoginResult, error) {
			return &services.LoginResult{Email: email, Name: "Test", UserID: "u1", Token: "tok"}, nil
		},
	}

	router := chi.NewRouter()
	routes.RegisterRoutes(
		router,
		routes.Config{
			LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: loginPerMin},
			UsersRateLimit: middleware.RateLimitConfig{RequestsPerMinute: 100},
		},
		handlers.NewAuthHandler(authSvc, nil, 0, slog.Default()),
		handlers.NewUserHandler(&handlers.MockUserService{}, slog.Default()),
		handlers.NewHealthHandler(&handlers.MockHealthChecker{}, slog.Default()),
		tm,
	)
	return router, tm
}

func loginRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@example.com","password":"pw"}`))
	req.RemoteAddr = "192.0.2.10:1234"
	return req
}

func TestRoutes_LoginPaths(t *testing.T) {
	router, _ := newRouter(t, 100)

	for _, path := range []string{"/login", "/auth/login"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"email":"a@example.com","password":"pw"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRoutes_LoginRateLimitedPerIP(t *testing.T) {
	router, _ := newRouter(t, 2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, loginRequest())
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, loginRequest())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRoutes_UsersRequiresToken(t *testing.T) {
	router, tm := newRouter(t, 100)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tm.Mint("a@example.com", "u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_Health(t *testing.T) {
	router, _ := newRouter(t, 100)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_MetricsNotOnPublicRouter(t *testing.T) {
	router, _ := newRouter(t, 100)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterMetricsRoutes(t *testing.T) {
	router := chi.NewRouter()
	routes.RegisterMetricsRoutes(router, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}
