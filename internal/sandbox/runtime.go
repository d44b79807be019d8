package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps goja VM with security controls
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	// DOM proxy objects, keyed both ways so JS identity is stable
	dom      *DOM
	objects  map[*Element]*goja.Object
	elements map[*goja.Object]*Element

	// Console output
	console     []LogEntry
	consoleHook func(LogEntry)
	consoleMu   sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	r := &Runtime{
		config:  config,
		console: []LogEntry{},
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) init() error {
	r.vm = goja.New()
	if r.config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}
	r.dom = nil
	r.objects = make(map[*Element]*goja.Object)
	r.elements = make(map[*goja.Object]*Element)
	return r.setupGlobals()
}

// Execute runs JavaScript code with timeout and resource limits. The DOM,
// when given, is exposed as document for this and every later call.
func (r *Runtime) Execute(ctx context.Context, script string, dom *DOM) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	start := time.Now()
	result := &Result{
		Console: []LogEntry{},
	}

	// Clear console
	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	// Inject DOM if provided
	if dom != nil {
		if err := r.injectDOM(dom); err != nil {
			return nil, fmt.Errorf("failed to inject DOM: %w", err)
		}
	}

	var val goja.Value
	err := r.guard(ctx, func() error {
		var runErr error
		val, runErr = r.vm.RunString(script)
		return runErr
	})

	result.Duration = time.Since(start)
	result.Console = r.Console()
	if dom != nil {
		result.DOMChanges = dom.GetChanges()
	}

	if err != nil {
		result.Error = err
		return result, err
	}

	result.Value = r.exportValue(val)
	return result, nil
}

// Do runs fn with exclusive access to the VM under the same timeout and
// cancellation guard as Execute. Go callbacks invoked by JS during fn must
// not call Do again.
func (r *Runtime) Do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrClosed
	}
	return r.guard(ctx, func() error {
		return fn(r.vm)
	})
}

// guard interrupts the VM when the timeout elapses or ctx is cancelled.
// Must be called with mu held.
func (r *Runtime) guard(ctx context.Context, fn func() error) error {
	vm := r.vm
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	err := fn()
	close(done)
	<-exited
	vm.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("script interrupted: %w", cause)
		}
	}
	return err
}

// SetConsoleHook registers a function called for every console entry.
func (r *Runtime) SetConsoleHook(hook func(LogEntry)) {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	r.consoleHook = hook
}

// Console returns the console output since the last Execute.
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// Object returns the JS proxy of a DOM element, if one was created. Must be
// called from within Do.
func (r *Runtime) Object(el *Element) *goja.Object {
	return r.objects[el]
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	// Scripts address the global scope as window
	if err := r.vm.Set("window", r.vm.GlobalObject()); err != nil {
		return err
	}

	// Setup console if enabled
	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "debug", "info", "warn", "error"} {
			console.Set(level, r.makeConsoleFunc(level))
		}
		r.vm.Set("console", console)
	}

	// Setup timers (no-op for security)
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		entry := LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		}

		r.consoleMu.Lock()
		r.console = append(r.console, entry)
		hook := r.consoleHook
		r.consoleMu.Unlock()

		if hook != nil {
			hook(entry)
		}
		return goja.Undefined()
	}
}

// injectDOM injects DOM proxy into runtime
func (r *Runtime) injectDOM(dom *DOM) error {
	r.dom = dom
	document := r.vm.NewObject()

	document.Set("body", r.elementObject(dom.Body()))
	document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return r.elementObject(NewElement(call.Argument(0).String()))
	})
	document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		elements := dom.Query(call.Argument(0).String())
		if len(elements) == 0 {
			return goja.Null()
		}
		return r.elementObject(elements[0])
	})
	document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		elements := dom.Query(call.Argument(0).String())
		values := make([]interface{}, 0, len(elements))
		for _, el := range elements {
			values = append(values, r.elementObject(el))
		}
		return r.vm.NewArray(values...)
	})
	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		elements := dom.Query("#" + call.Argument(0).String())
		if len(elements) == 0 {
			return goja.Null()
		}
		return r.elementObject(elements[0])
	})

	return r.vm.Set("document", document)
}

// elementObject returns the proxy for elem, creating it on first use.
// Properties assigned from JS (src, onload, ...) live on the proxy.
func (r *Runtime) elementObject(elem *Element) *goja.Object {
	if obj, ok := r.objects[elem]; ok {
		return obj
	}

	obj := r.vm.NewObject()
	obj.Set("tagName", strings.ToUpper(elem.TagName))
	obj.Set("id", elem.ID)
	obj.Set("className", elem.ClassName)
	obj.Set("getAttribute", func(name string) string {
		return elem.GetAttribute(name)
	})
	obj.Set("setAttribute", func(name, value string) {
		elem.SetAttribute(name, value)
		if r.dom != nil {
			r.dom.RecordChange(DOMChange{
				Type:     "set_attribute",
				Selector: elem.Describe(),
				Property: name,
				Value:    value,
			})
		}
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		childObj := call.Argument(0).ToObject(r.vm)
		child, ok := r.elements[childObj]
		if !ok {
			panic(r.vm.NewTypeError("appendChild: argument is not an element"))
		}
		if r.dom != nil {
			r.dom.Append(elem, child)
		} else {
			elem.AddElement(child)
		}
		return childObj
	})

	r.objects[elem] = obj
	r.elements[obj] = elem
	return obj
}

// exportValue converts goja value to Go value
func (r *Runtime) exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Reset clears the runtime state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleHook = nil
	r.consoleMu.Unlock()

	return r.init()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.dom = nil
	r.objects = nil
	r.elements = nil

	r.consoleMu.Lock()
	r.console = nil
	r.consoleHook = nil
	r.consoleMu.Unlock()
	return nil
}
