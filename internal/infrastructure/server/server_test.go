package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/captchaview/internal/infrastructure/config"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/tracing"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Logging.Development = true
	cfg.Sandbox.PoolSize = 1
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestNewServerRejectsDiagnosticsMode(t *testing.T) {
	cfg := testConfig()
	cfg.Render.Diagnostics = "verbose"

	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/v1/document?siteKey=k", "", http.StatusOK},
		{http.MethodPost, "/v1/messages", `{"load":[]}`, http.StatusOK},
		{http.MethodPost, "/v1/simulate", `{"siteKey":"k","scenario":"verify"}`, http.StatusOK},
		{http.MethodGet, "/missing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(tracing.TraceHeader))
		})
	}
}

func TestServerAppliesRenderDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.ScriptDomain = "www.recaptcha.net"
	cfg.Render.Enterprise = true
	srv := newTestServer(t, cfg)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/document?siteKey=k", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://www.recaptcha.net/recaptcha/enterprise.js?render=explicit", w.Header().Get("X-Provider-Script"))

	// Requests override defaults
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/document?siteKey=k&enterprise=false", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://www.recaptcha.net/recaptcha/api.js?render=explicit", w.Header().Get("X-Provider-Script"))
}

func TestServerRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	srv := newTestServer(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServerCloseIsIdempotent(t *testing.T) {
	srv, err := NewServer(testConfig())
	require.NoError(t, err)

	assert.NoError(t, srv.Close())
	assert.NoError(t, srv.Close())
}
