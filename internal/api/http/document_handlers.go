package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/domain/preview"
	"github.com/GriffinCanCode/captchaview/internal/protocol"
)

// maxMessageBytes bounds a posted lifecycle message.
const maxMessageBytes = 64 << 10

// DocumentRequest carries widget parameters and render overrides. It binds
// from the query string and from JSON bodies.
type DocumentRequest struct {
	SiteKey        string `form:"siteKey" json:"siteKey" binding:"required"`
	Size           string `form:"size" json:"size" binding:"omitempty,oneof=invisible normal compact"`
	Theme          string `form:"theme" json:"theme" binding:"omitempty,oneof=dark light"`
	Lang           string `form:"lang" json:"lang"`
	Action         string `form:"action" json:"action"`
	Enterprise     *bool  `form:"enterprise" json:"enterprise"`
	HideBadge      *bool  `form:"hideBadge" json:"hideBadge"`
	StringifyUnset *bool  `form:"stringifyUnset" json:"stringifyUnset"`
	Diagnostics    string `form:"diagnostics" json:"diagnostics" binding:"omitempty,oneof=off console expire"`
}

// Params returns the widget parameters.
func (r DocumentRequest) Params() document.Params {
	return document.Params{
		SiteKey: r.SiteKey,
		Size:    document.Size(r.Size),
		Theme:   document.Theme(r.Theme),
		Lang:    r.Lang,
		Action:  r.Action,
	}
}

// Overrides returns the render switches the request sets.
func (r DocumentRequest) Overrides() preview.Overrides {
	o := preview.Overrides{
		Enterprise:     r.Enterprise,
		HideBadge:      r.HideBadge,
		StringifyUnset: r.StringifyUnset,
	}
	if r.Diagnostics != "" {
		mode := document.DiagnosticMode(r.Diagnostics)
		o.Diagnostics = &mode
	}
	return o
}

// RenderDocument renders the widget document for the query parameters
func (h *Handlers) RenderDocument(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	doc, flags, err := h.renderer.Render(req.Params(), req.Overrides())
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Provider-Script", document.ScriptURL(h.renderer.Endpoints(), flags.Enterprise))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// DecodeMessage validates one posted lifecycle message and echoes the
// normalized event
func (h *Handlers) DecodeMessage(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := protocol.Decode(raw)
	if err != nil {
		h.metrics.RecordMalformed()
		h.logger.Debug("Rejected lifecycle message", zap.Error(err), zap.Int("bytes", len(raw)))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.metrics.RecordEvent(string(event.Kind))

	c.JSON(http.StatusOK, gin.H{
		"kind":    event.Kind,
		"payload": event.Payload,
		"message": event,
	})
}
