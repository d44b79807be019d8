package protocol

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Commander delivers host commands to the document, typically by calling
// window.rnRecaptcha.execute() or reset() inside the web view.
type Commander interface {
	Execute(ctx context.Context) error
	Reset(ctx context.Context) error
}

// DiagnosticSink receives setup checkpoints reported by the document.
type DiagnosticSink interface {
	Checkpoint(name string)
}

// CheckpointFunc adapts a function to DiagnosticSink.
type CheckpointFunc func(name string)

// Checkpoint calls f(name).
func (f CheckpointFunc) Checkpoint(name string) { f(name) }

// Session is the host-side state holder for one rendered document. It
// mirrors the widget lifecycle from the messages it observes, relays
// accepted events to its emitter and gates commands until the widget has
// loaded.
type Session struct {
	mu      sync.RWMutex
	state   State
	loaded  bool
	history []State

	cmd         Commander
	out         Emitter
	diagnostics DiagnosticSink
	logger      *zap.Logger
}

// NewSession creates a session in the idle state. out may be nil.
func NewSession(cmd Commander, out Emitter) *Session {
	if out == nil {
		out = Discard
	}
	return &Session{
		state:       StateIdle,
		history:     []State{StateIdle},
		cmd:         cmd,
		out:         out,
		diagnostics: CheckpointFunc(func(string) {}),
		logger:      zap.NewNop(),
	}
}

// WithDiagnostics routes setup checkpoints to sink.
func (s *Session) WithDiagnostics(sink DiagnosticSink) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink != nil {
		s.diagnostics = sink
	}
	return s
}

// WithLogger sets the logger used for transitions.
func (s *Session) WithLogger(logger *zap.Logger) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports whether the widget handle is defined, i.e. load was seen.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// History returns every state entered so far, starting with idle.
func (s *Session) History() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]State{}, s.history...)
}

// Advance records a setup stage the host observed directly: script
// injection or script load. Other states are entered through Observe and
// the commands.
func (s *Session) Advance(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if to != StateScriptInjected && to != StateScriptLoaded {
		return fmt.Errorf("%w: %s is not a setup stage", ErrInvalidTransition, to)
	}
	if s.loaded || !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.enter(to)
	return nil
}

// Checkpoint forwards a setup checkpoint to the diagnostic sink.
func (s *Session) Checkpoint(name string) {
	s.mu.RLock()
	sink := s.diagnostics
	s.mu.RUnlock()
	sink.Checkpoint(name)
}

// Observe applies a message received from the document. Accepted events are
// relayed to the emitter after the state is updated. Expire messages before
// load can only be setup checkpoints and go to the diagnostic sink instead.
func (s *Session) Observe(e Event) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, e.Kind)
	}

	s.mu.Lock()
	switch e.Kind {
	case KindLoad:
		if s.loaded {
			s.mu.Unlock()
			return ErrDuplicateLoad
		}
		if s.state == StateErred {
			from := s.state
			s.mu.Unlock()
			return fmt.Errorf("%w: load after %s", ErrInvalidTransition, from)
		}
		s.loaded = true
		s.enter(StateReady)

	case KindVerify:
		if !s.loaded {
			s.mu.Unlock()
			return fmt.Errorf("%w: verify before load", ErrInvalidTransition)
		}
		s.enter(StateVerified)

	case KindExpire:
		if !s.loaded {
			sink := s.diagnostics
			s.mu.Unlock()
			sink.Checkpoint(e.Payload)
			return nil
		}
		s.enter(StateExpired)

	case KindError:
		s.enter(StateErred)
	}
	out := s.out
	s.mu.Unlock()

	out.Emit(e)
	return nil
}

// Execute asks the provider to run a challenge. The outcome arrives later
// as a verify, expire or error message.
func (s *Session) Execute(ctx context.Context) error {
	cmd, err := s.commander()
	if err != nil {
		return err
	}
	return cmd.Execute(ctx)
}

// Reset returns the widget to its pre-verification condition.
func (s *Session) Reset(ctx context.Context) error {
	cmd, err := s.commander()
	if err != nil {
		return err
	}
	if err := cmd.Reset(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		s.enter(StateReady)
	}
	return nil
}

func (s *Session) commander() (Commander, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return nil, ErrNotReady
	}
	if s.cmd == nil {
		return nil, fmt.Errorf("%w: no commander attached", ErrNotReady)
	}
	return s.cmd, nil
}

// enter must be called with mu held.
func (s *Session) enter(to State) {
	from := s.state
	s.state = to
	s.history = append(s.history, to)
	s.logger.Debug("Lifecycle transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}
