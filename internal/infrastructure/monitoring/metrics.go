package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Document metrics
	DocumentsRendered *prometheus.CounterVec
	DocumentsRejected prometheus.Counter

	// Protocol metrics
	Events            *prometheus.CounterVec
	MessagesMalformed prometheus.Counter
	Checkpoints       prometheus.Counter

	// Simulation metrics
	Simulations        *prometheus.CounterVec
	SimulationDuration *prometheus.HistogramVec
	PoolAvailable      prometheus.Gauge
	BreakerOpen        prometheus.Gauge

	startTime time.Time
	latency   *window

	// Snapshot for the health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON health report.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	Documents      int64   `json:"documents"`
	Simulations    int64   `json:"simulations"`
	AverageLatency float64 `json:"average_latency_seconds"`
	UptimeSeconds  float64 `json:"uptime_seconds"`

	SimulationLatency LatencySummary `json:"simulation_latency"`

	totalDuration float64
}

// NewMetrics creates a metrics collector with a fresh registry, so several
// collectors can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		latency:   newWindow(windowSize),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captchaview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "captchaview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "captchaview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Document metrics
		DocumentsRendered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captchaview_documents_rendered_total",
				Help: "Total number of widget documents rendered",
			},
			[]string{"variant"},
		),
		DocumentsRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "captchaview_documents_rejected_total",
				Help: "Total number of render requests with invalid parameters",
			},
		),

		// Protocol metrics
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captchaview_lifecycle_events_total",
				Help: "Total number of lifecycle events relayed to hosts",
			},
			[]string{"kind"},
		),
		MessagesMalformed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "captchaview_messages_malformed_total",
				Help: "Total number of messages that failed to decode",
			},
		),
		Checkpoints: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "captchaview_setup_checkpoints_total",
				Help: "Total number of setup checkpoints reported by documents",
			},
		),

		// Simulation metrics
		Simulations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "captchaview_simulations_total",
				Help: "Total number of sandbox simulations",
			},
			[]string{"scenario", "outcome"},
		),
		SimulationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "captchaview_simulation_duration_seconds",
				Help:    "Sandbox simulation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"scenario"},
		),
		PoolAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "captchaview_sandbox_pool_available",
				Help: "Number of idle sandbox runtimes",
			},
		),
		BreakerOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "captchaview_sandbox_breaker_open",
				Help: "1 while the sandbox circuit breaker rejects simulations",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "captchaview_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDocument records a rendered document of the given variant.
func (m *Metrics) RecordDocument(variant string) {
	m.DocumentsRendered.WithLabelValues(variant).Inc()
	m.mu.Lock()
	m.snapshot.Documents++
	m.mu.Unlock()
}

// RecordRejected records a render request refused for invalid parameters.
func (m *Metrics) RecordRejected() {
	m.DocumentsRejected.Inc()
}

// RecordEvent records a lifecycle event relayed to a host.
func (m *Metrics) RecordEvent(kind string) {
	m.Events.WithLabelValues(kind).Inc()
}

// RecordMalformed records a message that failed to decode.
func (m *Metrics) RecordMalformed() {
	m.MessagesMalformed.Inc()
}

// RecordCheckpoint records a setup checkpoint.
func (m *Metrics) RecordCheckpoint() {
	m.Checkpoints.Inc()
}

// RecordSimulation records a finished simulation run.
func (m *Metrics) RecordSimulation(scenario, outcome string, duration time.Duration) {
	m.Simulations.WithLabelValues(scenario, outcome).Inc()
	m.SimulationDuration.WithLabelValues(scenario).Observe(duration.Seconds())
	m.latency.add(duration)
	m.mu.Lock()
	m.snapshot.Simulations++
	m.mu.Unlock()
}

// SetPoolAvailable sets the number of idle sandbox runtimes.
func (m *Metrics) SetPoolAvailable(count int) {
	m.PoolAvailable.Set(float64(count))
}

// SetBreakerOpen reports whether the sandbox breaker rejects runs.
func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// Snapshot returns the current counters for the health report.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AverageLatency = s.totalDuration / float64(s.TotalRequests)
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	s.SimulationLatency = m.latency.summary()
	return s
}
