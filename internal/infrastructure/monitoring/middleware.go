package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// Route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, path, status, time.Since(start), respSize)
	}
}

// Timer measures a simulation run
type Timer struct {
	start    time.Time
	metrics  *Metrics
	scenario string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, scenario string) *Timer {
	return &Timer{
		start:    time.Now(),
		metrics:  metrics,
		scenario: scenario,
	}
}

// Stop stops the timer and records the run with its outcome
func (t *Timer) Stop(outcome string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordSimulation(t.scenario, outcome, duration)
	return duration
}
