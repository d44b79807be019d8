package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens a span per request, continuing a valid incoming
// trace, and echoes the trace and span IDs in the response headers.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, parentID := Extract(c.Request.Header)
		ctx := withIDs(c.Request.Context(), traceID, parentID)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+route)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		Inject(ctx, c.Writer.Header())

		c.Next()

		status := c.Writer.Status()
		span.SetStatus(status)
		span.SetTag("http.status", strconv.Itoa(status))
		if err := c.Errors.Last(); err != nil {
			span.SetError(err)
		}

		span.Finish()
		tracer.Submit(span)
	}
}
