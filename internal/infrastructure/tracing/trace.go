package tracing

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/shared/id"
)

// Header names used for trace propagation.
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// spanBuffer bounds the finished spans waiting to be written.
const spanBuffer = 1000

// Span is one timed operation: an HTTP request or a simulation run.
type Span struct {
	TraceID    id.TraceID
	SpanID     id.SpanID
	ParentID   id.SpanID
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Events     []Event
	Error      error
	StatusCode int

	mu sync.Mutex
}

// Event is a point in time inside a span, such as a lifecycle message
// posted by a simulated document.
type Event struct {
	At     time.Time
	Name   string
	Detail string
}

// Tracer writes finished spans to the logger from a background goroutine.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// New starts a tracer for service.
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, spanBuffer),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, continuing the trace carried by ctx or starting
// a new one.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = id.NewTraceID()
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    id.NewSpanID(),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	return span, withIDs(ctx, traceID, span.SpanID)
}

// Finish records the span duration.
func (s *Span) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.StartTime)
}

func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tags[key] = value
}

// SetError marks the span failed. A span without a status gets 500.
func (s *Span) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = err
	if s.StatusCode == 0 {
		s.StatusCode = http.StatusInternalServerError
	}
}

func (s *Span) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusCode = code
}

// AddEvent appends a named event to the span.
func (s *Span) AddEvent(name, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{At: time.Now(), Name: name, Detail: detail})
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.write(span)
	}
}

func (t *Tracer) write(span *Span) {
	span.mu.Lock()
	defer span.mu.Unlock()

	fields := make([]zap.Field, 0, len(span.Tags)+8)
	fields = append(fields,
		zap.String("trace_id", span.TraceID.String()),
		zap.String("span_id", span.SpanID.String()),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	)
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.ParentID.String()))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}
	if n := len(span.Events); n > 0 {
		fields = append(fields,
			zap.Int("events", n),
			zap.String("last_event", span.Events[n-1].Name),
		)
	}

	if span.Error != nil {
		t.logger.Error("span completed with error", append(fields, zap.Error(span.Error))...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// Submit queues a finished span. Spans are dropped when the buffer is full
// or the tracer is closed.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.spans <- span:
	default:
		if t.dropped.Add(1) == 1 {
			t.logger.Warn("span buffer full, dropping spans", zap.String("trace_id", span.TraceID.String()))
		}
	}
}

// Dropped returns how many spans were discarded because the buffer was full.
func (t *Tracer) Dropped() uint64 {
	return t.dropped.Load()
}

// Close stops the collector after writing every queued span. It is safe to
// call more than once.
func (t *Tracer) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.spans)
	}
	t.mu.Unlock()
	<-t.done
}

// Extract reads trace context from request headers. Values that are not
// IDs this package could have issued are ignored.
func Extract(h http.Header) (id.TraceID, id.SpanID) {
	var traceID id.TraceID
	var spanID id.SpanID
	if v := h.Get(TraceHeader); id.IsValidTraceID(v) {
		traceID = id.TraceID(v)
	}
	if v := h.Get(SpanHeader); id.IsValidSpanID(v) {
		spanID = id.SpanID(v)
	}
	return traceID, spanID
}

// Inject writes the trace context carried by ctx into h.
func Inject(ctx context.Context, h http.Header) {
	if traceID := GetTraceID(ctx); traceID != "" {
		h.Set(TraceHeader, traceID.String())
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		h.Set(SpanHeader, spanID.String())
	}
}

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
)

func withIDs(ctx context.Context, traceID id.TraceID, spanID id.SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// GetTraceID returns the trace ID carried by ctx, if any.
func GetTraceID(ctx context.Context) id.TraceID {
	traceID, _ := ctx.Value(traceIDKey).(id.TraceID)
	return traceID
}

// GetSpanID returns the current span ID carried by ctx, if any.
func GetSpanID(ctx context.Context) id.SpanID {
	spanID, _ := ctx.Value(spanIDKey).(id.SpanID)
	return spanID
}
