package preview

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/monitoring"
)

// Overrides replaces individual default render switches. Nil fields keep
// the default.
type Overrides struct {
	Enterprise     *bool
	HideBadge      *bool
	StringifyUnset *bool
	Diagnostics    *document.DiagnosticMode
}

// Apply returns flags with the overrides applied.
func (o Overrides) Apply(flags document.Flags) document.Flags {
	if o.Enterprise != nil {
		flags.Enterprise = *o.Enterprise
	}
	if o.HideBadge != nil {
		flags.HideBadge = *o.HideBadge
	}
	if o.StringifyUnset != nil {
		flags.StringifyUnset = *o.StringifyUnset
	}
	if o.Diagnostics != nil {
		flags.Diagnostics = *o.Diagnostics
	}
	return flags
}

// Renderer builds widget documents against the configured provider hosts
// and default switches.
type Renderer struct {
	endpoints document.Endpoints
	defaults  document.Flags
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewRenderer creates a renderer. Empty endpoint hosts fall back to the
// public provider hosts.
func NewRenderer(endpoints document.Endpoints, defaults document.Flags) *Renderer {
	fallback := document.DefaultEndpoints()
	if endpoints.ScriptDomain == "" {
		endpoints.ScriptDomain = fallback.ScriptDomain
	}
	if endpoints.StaticDomain == "" {
		endpoints.StaticDomain = fallback.StaticDomain
	}
	if defaults.Diagnostics == "" {
		defaults.Diagnostics = document.DiagnosticsOff
	}
	return &Renderer{
		endpoints: endpoints,
		defaults:  defaults,
		logger:    zap.NewNop(),
	}
}

// WithMetrics adds metrics tracking to the renderer
func (r *Renderer) WithMetrics(metrics *monitoring.Metrics) *Renderer {
	r.metrics = metrics
	return r
}

// WithLogger sets the renderer logger
func (r *Renderer) WithLogger(logger *zap.Logger) *Renderer {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Endpoints returns the provider hosts documents are built against.
func (r *Renderer) Endpoints() document.Endpoints { return r.endpoints }

// Defaults returns the default render switches.
func (r *Renderer) Defaults() document.Flags { return r.defaults }

// Render validates params and builds the document.
func (r *Renderer) Render(params document.Params, overrides Overrides) (document.Document, document.Flags, error) {
	flags := overrides.Apply(r.defaults)
	if err := params.Validate(); err != nil {
		if r.metrics != nil {
			r.metrics.RecordRejected()
		}
		return "", flags, err
	}

	doc := document.Build(params, r.endpoints, flags)
	if r.metrics != nil {
		r.metrics.RecordDocument(variant(flags))
	}
	r.logger.Debug("Document rendered",
		zap.String("variant", variant(flags)),
		zap.String("diagnostics", string(flags.Diagnostics)),
		zap.Int("bytes", len(doc)),
	)
	return doc, flags, nil
}

func variant(flags document.Flags) string {
	if flags.Enterprise {
		return "enterprise"
	}
	return "standard"
}
