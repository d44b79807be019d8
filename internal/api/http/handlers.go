package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/api/middleware"
	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/domain/preview"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/upstream"
	"github.com/GriffinCanCode/captchaview/internal/sandbox"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handlers contains HTTP request handlers
type Handlers struct {
	renderer  *preview.Renderer
	simulator *preview.Simulator
	metrics   *monitoring.Metrics
	prober    *upstream.Prober
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	renderer *preview.Renderer,
	simulator *preview.Simulator,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		renderer:  renderer,
		simulator: simulator,
		metrics:   metrics,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Register mounts every route on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	compress := middleware.Compress(gzip.DefaultCompression)
	v1 := router.Group("/v1")
	v1.GET("/document", compress, h.RenderDocument)
	v1.POST("/messages", h.DecodeMessage)
	v1.POST("/simulate", compress, h.Simulate)
	v1.POST("/diagnostics", h.RecordCheckpoints)
	if h.prober != nil {
		v1.GET("/provider", h.ProviderStatus)
	}
}

// Root returns service info
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "captchaview",
		"version": Version,
		"endpoints": gin.H{
			"provider":    "/v1/provider",
			"document":    "/v1/document",
			"messages":    "/v1/messages",
			"simulate":    "/v1/simulate",
			"diagnostics": "/v1/diagnostics",
			"stream":      "/v1/stream",
			"health":      "/health",
			"metrics":     "/metrics",
		},
	})
}

// Health returns health status
func (h *Handlers) Health(c *gin.Context) {
	stats := h.simulator.Stats()
	status := "healthy"
	if stats["breaker"] == resilience.StateOpen.String() {
		status = "degraded"
	}

	endpoints := h.renderer.Endpoints()
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"version": Version,
		"sandbox": stats,
		"provider": gin.H{
			"script_domain": endpoints.ScriptDomain,
			"static_domain": endpoints.StaticDomain,
		},
		"metrics": h.metrics.Snapshot(),
	})
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, document.ErrInvalidParams),
		errors.Is(err, preview.ErrUnknownScenario):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests),
		errors.Is(err, sandbox.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, sandbox.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
