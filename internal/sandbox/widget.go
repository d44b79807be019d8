package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/protocol"
)

// Global names the document uses to reach its host.
const (
	BridgeName = "ReactNativeWebView"
	HandleName = "rnRecaptcha"
)

// Widget runs a generated document inside a sandbox runtime, playing the
// part of the web view host. It captures every posted message, mirrors the
// lifecycle in a protocol.Session and lets the caller complete the two
// asynchronous steps (script load, provider readiness) by hand.
type Widget struct {
	rt       *Runtime
	dom      *DOM
	script   string
	provider *Provider
	session  *protocol.Session
	trace    *protocol.Recorder
	logger   *zap.Logger
	release  func(*Runtime) error

	mu          sync.Mutex
	messages    []string
	malformed   []error
	checkpoints []string
	started     bool
}

// NewWidget prepares doc for execution on rt. Accepted lifecycle events are
// also relayed to out, which may be nil.
func NewWidget(rt *Runtime, doc document.Document, out protocol.Emitter) (*Widget, error) {
	page, err := goquery.NewDocumentFromReader(strings.NewReader(doc.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	script := page.Find("script").First().Text()
	if strings.TrimSpace(script) == "" {
		return nil, ErrNoScript
	}

	dom, err := ParseDOM(strings.NewReader(doc.String()))
	if err != nil {
		return nil, err
	}

	w := &Widget{
		rt:       rt,
		dom:      dom,
		script:   script,
		provider: NewProvider(rt),
		trace:    &protocol.Recorder{},
		logger:   zap.NewNop(),
	}

	emitter := protocol.Emitter(w.trace)
	if out != nil {
		emitter = protocol.Fanout{w.trace, out}
	}
	w.session = protocol.NewSession(widgetCommander{w}, emitter).
		WithDiagnostics(protocol.CheckpointFunc(w.recordCheckpoint))

	rt.SetConsoleHook(func(entry LogEntry) {
		if entry.Level == "debug" {
			w.session.Checkpoint(entry.Message)
		}
	})
	return w, nil
}

// WithLogger sets the logger for bridge diagnostics.
func (w *Widget) WithLogger(logger *zap.Logger) *Widget {
	if logger != nil {
		w.logger = logger
		w.session.WithLogger(logger)
	}
	return w
}

// Start evaluates the document script, which injects the provider script
// element.
func (w *Widget) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.rt.Do(ctx, w.installBridge); err != nil {
		return err
	}
	if _, err := w.rt.Execute(ctx, w.script, w.dom); err != nil {
		return fmt.Errorf("document script failed: %w", err)
	}
	if len(w.dom.Scripts()) == 0 {
		return ErrScriptNotInjected
	}
	return w.session.Advance(protocol.StateScriptInjected)
}

func (w *Widget) installBridge(vm *goja.Runtime) error {
	bridge := vm.NewObject()
	bridge.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		w.receive(call.Argument(0).String())
		return goja.Undefined()
	})
	return vm.Set(BridgeName, bridge)
}

// receive handles one message posted by the document.
func (w *Widget) receive(raw string) {
	w.mu.Lock()
	w.messages = append(w.messages, raw)
	w.mu.Unlock()

	ev, err := protocol.DecodeString(raw)
	if err != nil {
		w.mu.Lock()
		w.malformed = append(w.malformed, err)
		w.mu.Unlock()
		w.logger.Warn("Malformed lifecycle message", zap.String("raw", raw), zap.Error(err))
		return
	}
	if err := w.session.Observe(ev); err != nil {
		w.logger.Warn("Lifecycle event rejected", zap.Stringer("event", ev), zap.Error(err))
	}
}

func (w *Widget) recordCheckpoint(name string) {
	w.mu.Lock()
	w.checkpoints = append(w.checkpoints, name)
	w.mu.Unlock()
}

// LoadScript completes the provider script load: window.grecaptcha is
// defined and the script element's onload handler runs.
func (w *Widget) LoadScript(ctx context.Context) error {
	script, err := w.injected()
	if err != nil {
		return err
	}
	if err := w.session.Advance(protocol.StateScriptLoaded); err != nil {
		return err
	}
	return w.rt.Do(ctx, func(vm *goja.Runtime) error {
		if err := w.provider.install(vm); err != nil {
			return err
		}
		return callHandler(w.rt.Object(script), "onload")
	})
}

// FailScript fails the provider script load through its onerror handler.
func (w *Widget) FailScript(ctx context.Context) error {
	script, err := w.injected()
	if err != nil {
		return err
	}
	return w.rt.Do(ctx, func(vm *goja.Runtime) error {
		return callHandler(w.rt.Object(script), "onerror")
	})
}

// SignalReady reports provider readiness, running queued ready callbacks.
func (w *Widget) SignalReady(ctx context.Context) error {
	return w.rt.Do(ctx, func(vm *goja.Runtime) error {
		return w.provider.signalReady()
	})
}

// Boot runs Start, LoadScript and SignalReady, the path of a healthy page.
func (w *Widget) Boot(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	if err := w.LoadScript(ctx); err != nil {
		return err
	}
	return w.SignalReady(ctx)
}

// Execute issues the execute command through the session.
func (w *Widget) Execute(ctx context.Context) error {
	return w.session.Execute(ctx)
}

// Reset issues the reset command through the session.
func (w *Widget) Reset(ctx context.Context) error {
	return w.session.Reset(ctx)
}

// Verify makes the provider report a solved challenge.
func (w *Widget) Verify(ctx context.Context, token string) error {
	return w.provider.Trigger(ctx, 0, "callback", token)
}

// Expire makes the provider report an expired token.
func (w *Widget) Expire(ctx context.Context) error {
	return w.provider.Trigger(ctx, 0, "expired-callback")
}

// Fail makes the provider report a widget error.
func (w *Widget) Fail(ctx context.Context, detail string) error {
	return w.provider.Trigger(ctx, 0, "error-callback", detail)
}

// Provider returns the simulated provider runtime.
func (w *Widget) Provider() *Provider { return w.provider }

// Session returns the host-side lifecycle state holder.
func (w *Widget) Session() *protocol.Session { return w.session }

// DOM returns the document model.
func (w *Widget) DOM() *DOM { return w.dom }

// State returns the current lifecycle state.
func (w *Widget) State() protocol.State { return w.session.State() }

// Trace returns the events relayed to the host, in order.
func (w *Widget) Trace() []protocol.Event { return w.trace.Events() }

// Messages returns every raw message the document posted.
func (w *Widget) Messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.messages...)
}

// Malformed returns decode errors for messages that failed the schema.
func (w *Widget) Malformed() []error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]error{}, w.malformed...)
}

// Checkpoints returns the setup checkpoints reported by the document.
func (w *Widget) Checkpoints() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.checkpoints...)
}

// Close returns the runtime to its pool, or closes it.
func (w *Widget) Close() error {
	if w.release != nil {
		return w.release(w.rt)
	}
	return w.rt.Close()
}

func (w *Widget) injected() (*Element, error) {
	scripts := w.dom.Scripts()
	if len(scripts) == 0 {
		return nil, ErrScriptNotInjected
	}
	return scripts[0], nil
}

// callHandler invokes obj[name]() if the document assigned one.
func callHandler(obj *goja.Object, name string) error {
	if obj == nil {
		return ErrScriptNotInjected
	}
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return fmt.Errorf("script element has no %s handler", name)
	}
	_, err := fn(obj)
	return err
}

// widgetCommander sends host commands to window.rnRecaptcha.
type widgetCommander struct {
	w *Widget
}

func (c widgetCommander) Execute(ctx context.Context) error {
	return c.call(ctx, "execute")
}

func (c widgetCommander) Reset(ctx context.Context) error {
	return c.call(ctx, "reset")
}

func (c widgetCommander) call(ctx context.Context, method string) error {
	return c.w.rt.Do(ctx, func(vm *goja.Runtime) error {
		handle := vm.Get(HandleName)
		if handle == nil || goja.IsUndefined(handle) {
			return fmt.Errorf("window.%s is not defined", HandleName)
		}
		return invoke(vm, handle.ToObject(vm), method)
	})
}
