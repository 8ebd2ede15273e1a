package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, remoteAddr string, mutate func(*http.Request)) int {
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = remoteAddr
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitByIP_BlocksAfterLimit(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, "192.0.2.1:1000", nil))
	assert.Equal(t, http.StatusOK, serve(h, "192.0.2.1:1001", nil))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.0.2.1:1002", nil))

	// Other clients are unaffected
	assert.Equal(t, http.StatusOK, serve(h, "192.0.2.2:1000", nil))
}

func TestRateLimitByIP_IgnoresSpoofedHeadersFromUntrustedPeer(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler)

	spoof := func(ip string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
	}

	assert.Equal(t, http.StatusOK, serve(h, "192.0.2.1:1000", spoof("198.51.100.1")))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.0.2.1:1000", spoof("198.51.100.2")))
}

func TestRateLimitByIP_KeysOnForwardedAddressFromTrustedProxy(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{
		RequestsPerMinute: 1,
		IPConfig:          pkghttp.NewIPConfig([]string{"10.0.0.0/8"}),
	})(okHandler)

	forwarded := func(ip string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
	}

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.5:1000", forwarded("198.51.100.1")))
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.5:1000", forwarded("198.51.100.2")))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.5:1000", forwarded("198.51.100.1")))
}

func TestRateLimitByIP_JSONBody(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler)
	serve(h, "192.0.2.9:1000", nil)

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "192.0.2.9:1000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"error":"rate_limit_exceeded"`)
}

func TestRateLimitByUser_KeysOnSubject(t *testing.T) {
	h := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 1})(okHandler)

	asUser := func(id string) func(*http.Request) {
		return func(r *http.Request) {
			claims := &models.TokenClaims{UserID: id, Type: models.TokenTypeSession}
			*r = *r.WithContext(context.WithValue(r.Context(), auth.UserContextKey, claims))
		}
	}

	assert.Equal(t, http.StatusOK, serve(h, "192.0.2.1:1000", asUser("user-1")))
	assert.Equal(t, http.StatusOK, serve(h, "192.0.2.1:1000", asUser("user-2")))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.0.2.7:1000", asUser("user-1")))
}
