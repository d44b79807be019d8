package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/v1/document", func(c *gin.Context) {
		c.Header("X-Provider-Script", "https://www.google.com/recaptcha/api.js?render=explicit")
		c.String(http.StatusOK, "<!DOCTYPE html>")
	})
	return router
}

func request(router *gin.Engine, method, ip, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/v1/document", nil)
	if ip != "" {
		req.RemoteAddr = ip + ":1234"
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter(CORS(DefaultCORSConfig()))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"simple GET with origin", http.MethodGet, "http://localhost:3000", http.StatusOK, "*"},
		{"preflight", http.MethodOptions, "http://localhost:3000", http.StatusNoContent, "*"},
		{"no origin header", http.MethodGet, "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(router, tt.method, "", tt.origin)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSExposesHeaders(t *testing.T) {
	router := setupTestRouter(CORS(DefaultCORSConfig()))

	w := request(router, http.MethodGet, "", "http://localhost:3000")
	exposed := w.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, "X-Provider-Script")
	assert.Contains(t, exposed, "X-Trace-Id")
}

func TestCORSWithOrigins(t *testing.T) {
	cfg := DefaultCORSConfig().WithOrigins([]string{"https://app.example.com"})
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowOrigins)
	assert.Equal(t, []string{"*"}, DefaultCORSConfig().WithOrigins(nil).AllowOrigins)

	router := setupTestRouter(CORS(cfg))

	w := request(router, http.MethodGet, "", "https://app.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(router, http.MethodGet, "", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))

	// Burst capacity
	for i := 0; i < 2; i++ {
		w := request(router, http.MethodGet, "192.168.1.1", "")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := request(router, http.MethodGet, "192.168.1.1", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimitDifferentClients(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "192.168.1.1", "").Code)
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "192.168.1.2", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(router, http.MethodGet, "192.168.1.1", "").Code)
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))

	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "192.168.1.1", "").Code)
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "192.168.1.2", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(router, http.MethodGet, "192.168.1.3", "").Code)
}

func TestLimiterSetEvictsIdleClients(t *testing.T) {
	now := time.Unix(0, 0)
	set := newLimiterSet(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, func() time.Time {
		return now
	})

	set.get("10.0.0.1")
	set.get("10.0.0.2")
	assert.Equal(t, 2, set.size())

	now = now.Add(30 * time.Second)
	set.get("10.0.0.2")

	now = now.Add(45 * time.Second)
	set.get("10.0.0.3")

	// 10.0.0.1 idle for 75s is gone; 10.0.0.2 was seen 45s ago
	assert.Equal(t, 2, set.size())
	_, ok := set.clients["10.0.0.1"]
	assert.False(t, ok)
}

func TestDefaultConfigs(t *testing.T) {
	cors := DefaultCORSConfig()
	assert.Contains(t, cors.AllowOrigins, "*")
	assert.Contains(t, cors.AllowMethods, "GET")
	assert.Contains(t, cors.AllowMethods, "POST")
	assert.False(t, cors.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cors.MaxAge)

	rl := DefaultRateLimitConfig()
	assert.Equal(t, 100, rl.RequestsPerSecond)
	assert.Equal(t, 200, rl.Burst)
	assert.Equal(t, 10*time.Minute, rl.IdleTTL)
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter(RateLimit(DefaultRateLimitConfig()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		request(router, http.MethodGet, "192.168.1.1", "")
	}
}
