package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/captchaview/internal/domain/preview"
)

// SimulateRequest asks for a scenario run of a rendered document.
type SimulateRequest struct {
	DocumentRequest
	Scenario string `json:"scenario"`
	Token    string `json:"token"`
	Detail   string `json:"detail"`
}

// Simulate renders the document and runs a scenario against it in a
// sandbox
func (h *Handlers) Simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	scenario, err := preview.ParseScenario(req.Scenario)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.simulator.Simulate(c.Request.Context(), preview.Request{
		Params:    req.Params(),
		Overrides: req.Overrides(),
		Scenario:  scenario,
		Token:     req.Token,
		Detail:    req.Detail,
	})
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}
