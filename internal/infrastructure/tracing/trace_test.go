package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/captchaview/internal/shared/id"
)

func newObservedTracer() (*Tracer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New("test", zap.New(core)), logs
}

func TestStartSpanInheritsTrace(t *testing.T) {
	tracer, _ := newObservedTracer()
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, childCtx := tracer.StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Empty(t, parent.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
	assert.True(t, strings.HasPrefix(parent.TraceID.String(), id.TracePrefix+"_"))
}

func TestCloseDrainsSpans(t *testing.T) {
	tracer, logs := newObservedTracer()

	ok, _ := tracer.StartSpan(context.Background(), "ok")
	ok.SetTag("scenario", "verify")
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "failed")
	failed.SetError(errors.New("boom"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()
	// Submitting after close is a no-op
	tracer.Submit(ok)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "span completed", entries[0].Message)
	assert.Equal(t, "verify", entries[0].ContextMap()["scenario"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(500), entries[1].ContextMap()["status"])
}

func TestExtractTraceContext(t *testing.T) {
	traceID := id.NewTraceID()
	spanID := id.NewSpanID()

	header := func(kv ...string) http.Header {
		h := http.Header{}
		for i := 0; i+1 < len(kv); i += 2 {
			h.Set(kv[i], kv[i+1])
		}
		return h
	}

	tests := []struct {
		name      string
		headers   http.Header
		wantTrace id.TraceID
		wantSpan  id.SpanID
	}{
		{
			name:      "valid headers",
			headers:   header(TraceHeader, traceID.String(), SpanHeader, spanID.String()),
			wantTrace: traceID,
			wantSpan:  spanID,
		},
		{
			name:    "missing headers",
			headers: header(),
		},
		{
			name:     "invalid trace kept out",
			headers:  header(TraceHeader, "anything", SpanHeader, spanID.String()),
			wantSpan: spanID,
		},
		{
			name:      "trace id in span header",
			headers:   header(TraceHeader, traceID.String(), SpanHeader, traceID.String()),
			wantTrace: traceID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTrace, gotSpan := Extract(tt.headers)
			assert.Equal(t, tt.wantTrace, gotTrace)
			assert.Equal(t, tt.wantSpan, gotSpan)
		})
	}

	out := http.Header{}
	Inject(withIDs(context.Background(), traceID, ""), out)
	assert.Equal(t, traceID.String(), out.Get(TraceHeader))
	assert.Empty(t, out.Get(SpanHeader))
}

func TestSpanEvents(t *testing.T) {
	tracer, logs := newObservedTracer()

	span, _ := tracer.StartSpan(context.Background(), "simulate")
	span.AddEvent("load", "")
	span.AddEvent("verify", "token")
	span.Finish()
	tracer.Submit(span)
	tracer.Close()

	require.Len(t, span.Events, 2)
	assert.Equal(t, "token", span.Events[1].Detail)

	entries := logs.FilterMessage("span completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["events"])
	assert.Equal(t, "verify", entries[0].ContextMap()["last_event"])
	assert.Zero(t, tracer.Dropped())
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer()

	var seen id.TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/health", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	incoming := id.NewTraceID()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(TraceHeader, incoming.String())
	router.ServeHTTP(w, req)

	assert.Equal(t, incoming, seen)
	assert.Equal(t, incoming.String(), w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(TraceHeader, "forged")
	router.ServeHTTP(w, req)

	assert.NotEqual(t, "forged", w.Header().Get(TraceHeader))
	assert.True(t, id.IsValidTraceID(w.Header().Get(TraceHeader)))

	tracer.Close()
	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "GET /health", entries[0].ContextMap()["operation"])
	assert.Equal(t, "200", entries[0].ContextMap()["http.status"])
}
