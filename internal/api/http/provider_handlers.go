package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/infrastructure/upstream"
)

// WithProber enables GET /v1/provider.
func (h *Handlers) WithProber(prober *upstream.Prober) *Handlers {
	h.prober = prober
	return h
}

// ProviderStatus reports whether the provider scripts documents load are
// reachable. Any unreachable script turns the response into a 503.
func (h *Handlers) ProviderStatus(c *gin.Context) {
	statuses := h.prober.Check(c.Request.Context())

	reachable := true
	for _, s := range statuses {
		if !s.Reachable {
			reachable = false
		}
	}

	code := http.StatusOK
	status := "reachable"
	if !reachable {
		code = http.StatusServiceUnavailable
		status = "unreachable"
		h.logger.Warn("Provider probe failed", zap.Int("scripts", len(statuses)))
	}

	c.JSON(code, gin.H{
		"status":  status,
		"scripts": statuses,
		"breaker": h.prober.BreakerState(),
	})
}
