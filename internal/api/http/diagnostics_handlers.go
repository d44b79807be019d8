package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Checkpoint is one setup checkpoint a host captured from a document
// rendered in console diagnostics mode.
type Checkpoint struct {
	Name      string                 `json:"name" binding:"required"`
	SiteKey   string                 `json:"siteKey"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// CheckpointBatch is a batch of checkpoints from one host.
type CheckpointBatch struct {
	Source      string       `json:"source" binding:"required"`
	Checkpoints []Checkpoint `json:"checkpoints" binding:"required,min=1,dive"`
}

// RecordCheckpoints logs setup checkpoints relayed by hosts. Markup in
// string values is stripped before logging.
func (h *Handlers) RecordCheckpoints(c *gin.Context) {
	var batch CheckpointBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkpoint batch: " + err.Error()})
		return
	}

	for _, cp := range batch.Checkpoints {
		h.logger.Debug("Setup checkpoint", checkpointFields(h.sanitizer, batch.Source, cp)...)
		h.metrics.RecordCheckpoint()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"received":  len(batch.Checkpoints),
		"timestamp": time.Now().Unix(),
	})
}

func checkpointFields(policy *bluemonday.Policy, source string, cp Checkpoint) []zap.Field {
	fields := make([]zap.Field, 0, len(cp.Context)+4)
	fields = append(fields,
		zap.String("checkpoint", policy.Sanitize(cp.Name)),
		zap.String("source", policy.Sanitize(source)),
		zap.String("site_key", policy.Sanitize(cp.SiteKey)),
		zap.String("host_timestamp", policy.Sanitize(cp.Timestamp)),
	)

	for key, value := range cp.Context {
		key = policy.Sanitize(key)
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, policy.Sanitize(v)))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}
	return fields
}
