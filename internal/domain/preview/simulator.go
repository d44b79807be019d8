package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/captchaview/internal/protocol"
	"github.com/GriffinCanCode/captchaview/internal/sandbox"
)

// ErrUnknownScenario is returned for scenario names Simulate does not know.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario names a scripted run of a document against the simulated
// provider.
type Scenario string

const (
	// ScenarioLoad boots the widget.
	ScenarioLoad Scenario = "load"
	// ScenarioVerify boots, executes and answers with a token.
	ScenarioVerify Scenario = "verify"
	// ScenarioExpire verifies, then expires the token.
	ScenarioExpire Scenario = "expire"
	// ScenarioError boots, then fails the widget.
	ScenarioError Scenario = "error"
	// ScenarioScriptFailure fails the provider script load.
	ScenarioScriptFailure Scenario = "script-failure"
	// ScenarioReset verifies, then resets the widget.
	ScenarioReset Scenario = "reset"
)

// Scenarios lists every scenario in presentation order.
var Scenarios = []Scenario{
	ScenarioLoad,
	ScenarioVerify,
	ScenarioExpire,
	ScenarioError,
	ScenarioScriptFailure,
	ScenarioReset,
}

// ParseScenario maps a name to a scenario. Empty means load.
func ParseScenario(s string) (Scenario, error) {
	if s == "" {
		return ScenarioLoad, nil
	}
	for _, sc := range Scenarios {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

const (
	defaultToken  = "simulated-token"
	defaultDetail = "network error"
)

// Request describes one simulation.
type Request struct {
	Params    document.Params
	Overrides Overrides
	Scenario  Scenario
	// Token answers execute in verify, expire and reset runs.
	Token string
	// Detail is reported by the provider in error runs.
	Detail string
	// Observer, if set, also receives accepted lifecycle events as they
	// are posted. It must not block.
	Observer protocol.Emitter
}

// Run is the outcome of one simulation.
type Run struct {
	ID          string           `json:"id"`
	Scenario    Scenario         `json:"scenario"`
	Variant     string           `json:"variant"`
	Trace       []protocol.Event `json:"trace"`
	Messages    []string         `json:"messages"`
	Checkpoints []string         `json:"checkpoints"`
	States      []protocol.State `json:"states"`
	Final       protocol.State   `json:"final"`
	Ready       bool             `json:"ready"`
	Malformed   int              `json:"malformed"`
	Duration    time.Duration    `json:"duration_ns"`
}

// Simulator runs documents in pooled sandboxes. Runs go through a circuit
// breaker so a sandbox that keeps timing out stops taking work.
type Simulator struct {
	renderer *Renderer
	pool     *sandbox.Pool
	breaker  *resilience.Breaker
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	logger   *zap.Logger
}

// NewSimulator creates a simulator. breaker may be nil.
func NewSimulator(renderer *Renderer, pool *sandbox.Pool, breaker *resilience.Breaker) *Simulator {
	if breaker == nil {
		breaker = resilience.New("sandbox", resilience.Settings{
			IsSuccessful: IsSandboxHealthy,
		})
	}
	return &Simulator{
		renderer: renderer,
		pool:     pool,
		breaker:  breaker,
		logger:   zap.NewNop(),
	}
}

// WithMetrics adds metrics tracking to the simulator
func (s *Simulator) WithMetrics(metrics *monitoring.Metrics) *Simulator {
	s.metrics = metrics
	return s
}

// WithTracer opens a span per run
func (s *Simulator) WithTracer(tracer *tracing.Tracer) *Simulator {
	s.tracer = tracer
	return s
}

// WithLogger sets the simulator logger
func (s *Simulator) WithLogger(logger *zap.Logger) *Simulator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// IsSandboxHealthy reports whether err leaves the sandbox above suspicion:
// no error, or the caller gave up.
func IsSandboxHealthy(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Stats returns pool and breaker statistics.
func (s *Simulator) Stats() map[string]interface{} {
	stats := s.pool.Stats()
	snap := s.breaker.Snapshot()
	stats["breaker"] = snap.State
	stats["breaker_failures"] = snap.Counts.ConsecutiveFailures
	return stats
}

// Simulate renders req.Params and plays the scenario against the simulated
// provider.
func (s *Simulator) Simulate(ctx context.Context, req Request) (*Run, error) {
	scenario := req.Scenario
	if scenario == "" {
		scenario = ScenarioLoad
	}
	if _, err := ParseScenario(string(scenario)); err != nil {
		return nil, err
	}

	doc, flags, err := s.renderer.Render(req.Params, req.Overrides)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:       uuid.New().String(),
		Scenario: scenario,
		Variant:  variant(flags),
	}

	if s.tracer != nil {
		var span *tracing.Span
		span, ctx = s.tracer.StartSpan(ctx, "simulate")
		span.SetTag("scenario", string(scenario))
		span.SetTag("run_id", run.ID)
		defer func() {
			for _, e := range run.Trace {
				span.AddEvent(string(e.Kind), e.Payload)
			}
			span.Finish()
			s.tracer.Submit(span)
		}()
	}

	var timer *monitoring.Timer
	if s.metrics != nil {
		timer = monitoring.NewTimer(s.metrics, string(scenario))
	}
	start := time.Now()

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.play(ctx, doc, scenario, req, run)
	})
	run.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		outcome = "rejected"
	case err != nil:
		outcome = "failed"
	}
	if s.metrics != nil {
		timer.Stop(outcome)
		s.metrics.SetBreakerOpen(s.breaker.State() == resilience.StateOpen)
		if available, ok := s.pool.Stats()["available"].(int); ok {
			s.metrics.SetPoolAvailable(available)
		}
	}

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("scenario", string(scenario)),
		zap.String("outcome", outcome),
		zap.Duration("duration", run.Duration),
	}
	if err != nil {
		s.logger.Warn("Simulation failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	s.logger.Info("Simulation finished", append(fields, zap.String("final", string(run.Final)))...)
	return run, nil
}

// play runs one scenario on a pooled sandbox and fills run.
func (s *Simulator) play(ctx context.Context, doc document.Document, scenario Scenario, req Request, run *Run) error {
	var relays protocol.Fanout
	if s.metrics != nil {
		relays = append(relays, protocol.EmitterFunc(func(e protocol.Event) {
			s.metrics.RecordEvent(string(e.Kind))
		}))
	}
	if req.Observer != nil {
		relays = append(relays, req.Observer)
	}
	var relay protocol.Emitter
	if len(relays) > 0 {
		relay = relays
	}

	w, err := s.pool.Widget(ctx, doc, relay)
	if err != nil {
		return err
	}
	defer w.Close()
	w.WithLogger(s.logger)

	token := req.Token
	if token == "" {
		token = defaultToken
	}
	detail := req.Detail
	if detail == "" {
		detail = defaultDetail
	}

	var steps []func(context.Context) error
	switch scenario {
	case ScenarioScriptFailure:
		steps = []func(context.Context) error{w.Start, w.FailScript}
	case ScenarioLoad:
		steps = []func(context.Context) error{w.Boot}
	case ScenarioError:
		steps = []func(context.Context) error{w.Boot, func(ctx context.Context) error {
			return w.Fail(ctx, detail)
		}}
	default:
		w.Provider().AutoVerify(token)
		steps = []func(context.Context) error{w.Boot, w.Execute}
		switch scenario {
		case ScenarioExpire:
			steps = append(steps, w.Expire)
		case ScenarioReset:
			steps = append(steps, w.Reset)
		}
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}

	run.Trace = w.Trace()
	run.Messages = w.Messages()
	run.Checkpoints = w.Checkpoints()
	run.States = w.Session().History()
	run.Final = w.State()
	run.Ready = w.Session().Ready()
	run.Malformed = len(w.Malformed())

	if s.metrics != nil {
		for range run.Checkpoints {
			s.metrics.RecordCheckpoint()
		}
		for i := 0; i < run.Malformed; i++ {
			s.metrics.RecordMalformed()
		}
	}
	return nil
}
