package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Provider variants exposed to the document.
const (
	VariantStandard   = "standard"
	VariantEnterprise = "enterprise"
)

// ProviderCall records one command the document issued to the provider.
type ProviderCall struct {
	Method  string // execute, reset
	Variant string
	Widget  int64
}

// RenderedWidget describes a widget the document rendered.
type RenderedWidget struct {
	ID      int64
	Variant string
	// Config holds the string fields of the render parameters. Absent keys
	// were not passed by the document.
	Config map[string]string

	params *goja.Object
}

// Provider simulates the reCAPTCHA runtime inside a sandbox. It exposes
// window.grecaptcha and window.grecaptcha.enterprise with ready, render,
// execute, reset and getResponse, and lets the host fire the widget
// callbacks.
type Provider struct {
	rt *Runtime

	mu         sync.Mutex
	ready      bool
	pending    []goja.Callable
	widgets    []*RenderedWidget
	calls      []ProviderCall
	autoToken  string
	renderFail string
}

// NewProvider creates a provider bound to rt. It is installed into the VM
// when the document's script load completes.
func NewProvider(rt *Runtime) *Provider {
	return &Provider{rt: rt}
}

// AutoVerify makes every execute call answer immediately with token.
func (p *Provider) AutoVerify(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoToken = token
}

// FailRender makes render throw an error with the given message.
func (p *Provider) FailRender(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderFail = message
}

// Widgets returns the rendered widgets.
func (p *Provider) Widgets() []RenderedWidget {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]RenderedWidget, 0, len(p.widgets))
	for _, w := range p.widgets {
		out = append(out, *w)
	}
	return out
}

// Calls returns the execute and reset calls received so far.
func (p *Provider) Calls() []ProviderCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProviderCall{}, p.calls...)
}

// install defines window.grecaptcha. Must be called from within Do.
func (p *Provider) install(vm *goja.Runtime) error {
	standard := p.object(vm, VariantStandard)
	standard.Set("enterprise", p.object(vm, VariantEnterprise))
	return vm.Set("grecaptcha", standard)
}

func (p *Provider) object(vm *goja.Runtime, variant string) *goja.Object {
	obj := vm.NewObject()

	obj.Set("ready", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("ready: callback is not a function"))
		}
		p.mu.Lock()
		if !p.ready {
			p.pending = append(p.pending, fn)
			p.mu.Unlock()
			return goja.Undefined()
		}
		p.mu.Unlock()

		if _, err := fn(goja.Undefined()); err != nil {
			panic(err)
		}
		return goja.Undefined()
	})

	obj.Set("render", func(call goja.FunctionCall) goja.Value {
		params := call.Argument(1).ToObject(vm)

		p.mu.Lock()
		if p.renderFail != "" {
			msg := p.renderFail
			p.mu.Unlock()
			panic(vm.NewGoError(fmt.Errorf("%s", msg)))
		}
		w := &RenderedWidget{
			ID:      int64(len(p.widgets)),
			Variant: variant,
			Config:  make(map[string]string),
			params:  params,
		}
		for _, key := range []string{"sitekey", "size", "theme", "action"} {
			if v := params.Get(key); v != nil && !goja.IsUndefined(v) {
				w.Config[key] = v.String()
			}
		}
		p.widgets = append(p.widgets, w)
		p.mu.Unlock()

		return vm.ToValue(w.ID)
	})

	obj.Set("execute", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()

		p.mu.Lock()
		p.calls = append(p.calls, ProviderCall{Method: "execute", Variant: variant, Widget: id})
		token := p.autoToken
		w := p.widgetLocked(id)
		p.mu.Unlock()

		if token != "" && w != nil {
			if err := invoke(vm, w.params, "callback", token); err != nil {
				panic(err)
			}
		}
		return goja.Undefined()
	})

	obj.Set("reset", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()

		p.mu.Lock()
		p.calls = append(p.calls, ProviderCall{Method: "reset", Variant: variant, Widget: id})
		p.mu.Unlock()
		return goja.Undefined()
	})

	obj.Set("getResponse", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue("")
	})

	return obj
}

// signalReady runs the queued ready callbacks; later ready calls run
// immediately. Must be called from within Do.
func (p *Provider) signalReady() error {
	p.mu.Lock()
	p.ready = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, fn := range pending {
		if _, err := fn(goja.Undefined()); err != nil {
			return err
		}
	}
	return nil
}

// Trigger fires one of the render callbacks of a widget: callback,
// expired-callback or error-callback.
func (p *Provider) Trigger(ctx context.Context, widget int64, callback string, args ...interface{}) error {
	p.mu.Lock()
	w := p.widgetLocked(widget)
	p.mu.Unlock()
	if w == nil {
		return fmt.Errorf("%w: id %d", ErrNoWidget, widget)
	}

	return p.rt.Do(ctx, func(vm *goja.Runtime) error {
		return invoke(vm, w.params, callback, args...)
	})
}

func (p *Provider) widgetLocked(id int64) *RenderedWidget {
	if id < 0 || id >= int64(len(p.widgets)) {
		return nil
	}
	return p.widgets[id]
}

// invoke calls obj[name](args...) if it is a function.
func invoke(vm *goja.Runtime, obj *goja.Object, name string, args ...interface{}) error {
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return fmt.Errorf("render parameter %q is not a function", name)
	}
	values := make([]goja.Value, 0, len(args))
	for _, a := range args {
		values = append(values, vm.ToValue(a))
	}
	_, err := fn(goja.Undefined(), values...)
	return err
}
