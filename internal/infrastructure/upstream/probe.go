package upstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/document"
)

// ErrNotScript is reported when a provider host answers with an HTML page
// instead of the widget script, as captive portals and block pages do.
var ErrNotScript = errors.New("provider returned an html page")

// Status is the outcome of fetching one provider script.
type Status struct {
	Variant     string        `json:"variant"`
	URL         string        `json:"url"`
	Reachable   bool          `json:"reachable"`
	StatusCode  int           `json:"status_code,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Detected    string        `json:"detected_type,omitempty"`
	Bytes       int           `json:"bytes"`
	Latency     time.Duration `json:"latency_ns"`
	Error       string        `json:"error,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
}

// Prober checks that the provider scripts documents load are reachable.
// Results are cached for ttl.
type Prober struct {
	client    *Client
	endpoints document.Endpoints
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu        sync.Mutex
	cached    []Status
	checkedAt time.Time
}

// NewProber creates a prober for the standard and enterprise scripts.
func NewProber(client *Client, endpoints document.Endpoints, ttl time.Duration) *Prober {
	return &Prober{
		client:    client,
		endpoints: endpoints,
		ttl:       ttl,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
}

// WithLogger sets the prober logger
func (p *Prober) WithLogger(logger *zap.Logger) *Prober {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Check returns the status of every provider script, probing again when
// the cached result is older than the ttl.
func (p *Prober) Check(ctx context.Context) []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Sub(p.checkedAt) < p.ttl {
		return append([]Status(nil), p.cached...)
	}

	statuses := []Status{
		p.probe(ctx, "standard", document.ScriptURL(p.endpoints, false)),
		p.probe(ctx, "enterprise", document.ScriptURL(p.endpoints, true)),
	}
	p.cached = statuses
	p.checkedAt = p.now()
	return append([]Status(nil), statuses...)
}

func (p *Prober) probe(ctx context.Context, variant, url string) Status {
	status := Status{Variant: variant, URL: url, CheckedAt: p.now()}

	start := time.Now()
	resp, err := p.client.Get(ctx, url)
	status.Latency = time.Since(start)

	if resp != nil {
		status.StatusCode = resp.StatusCode()
		status.ContentType = resp.Header().Get("Content-Type")
		status.Bytes = len(resp.Body())
		if status.Bytes > 0 {
			detected := mimetype.Detect(resp.Body())
			status.Detected = detected.String()
			if err == nil && detected.Is("text/html") {
				err = ErrNotScript
			}
		}
	}
	if err != nil {
		status.Error = err.Error()
	}
	status.Reachable = err == nil && status.StatusCode >= 200 && status.StatusCode < 300

	if !status.Reachable {
		p.logger.Warn("Provider script unreachable",
			zap.String("variant", variant),
			zap.String("url", url),
			zap.Int("status", status.StatusCode),
			zap.String("error", status.Error),
		)
	}
	return status
}

// BreakerState reports the upstream circuit breaker state.
func (p *Prober) BreakerState() string {
	return p.client.BreakerState().String()
}
