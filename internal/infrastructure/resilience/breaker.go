package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests is the number of trial requests let through while
	// half-open, and the successes needed to close again. Defaults to 1.
	MaxRequests uint32
	// Interval clears the counts periodically while closed. Defaults to 60s.
	Interval time.Duration
	// Timeout is how long the breaker stays open. Defaults to 60s.
	Timeout time.Duration
	// ReadyToTrip decides, after a failure while closed, whether to open.
	// Defaults to TripAfter(6).
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies the error a request returned. Errors it
	// accepts do not count against the breaker. Defaults to err == nil.
	IsSuccessful func(err error) bool
	// OnStateChange is called with the breaker lock held.
	OnStateChange func(name string, from State, to State)
	// Now overrides the clock.
	Now func() time.Time
}

// Counts holds the statistics of the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Snapshot is a point-in-time view of a breaker. RetryAt is set while open
// and is when a trial request will be let through.
type Snapshot struct {
	Name    string     `json:"name"`
	State   string     `json:"state"`
	Counts  Counts     `json:"counts"`
	RetryAt *time.Time `json:"retry_at,omitempty"`
}

// Breaker stops calling a dependency after repeated failures and probes it
// again once Timeout has passed.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// TripAfter returns a ReadyToTrip func that opens the breaker after n
// consecutive failures.
func TripAfter(n uint32) func(Counts) bool {
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// New creates a closed breaker, filling unset settings with defaults.
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout <= 0 {
		settings.Timeout = time.Minute
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = TripAfter(6)
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool { return err == nil }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	return &Breaker{
		name:     name,
		settings: settings,
		expiry:   settings.Now().Add(settings.Interval),
	}
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying any due transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Now())
	return b.state
}

// Counts returns a copy of the current generation's counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Snapshot returns the state and counts together.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Now())
	snap := Snapshot{Name: b.name, State: b.state.String(), Counts: b.counts}
	if b.state == StateOpen {
		retryAt := b.expiry
		snap.RetryAt = &retryAt
	}
	return snap
}

// Execute runs req if the breaker admits it and records the outcome. The
// error req returns is passed through unchanged. A context that is already
// done is reported without running req or touching the counts.
func (b *Breaker) Execute(ctx context.Context, req func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			b.record(generation, false)
			panic(e)
		}
	}()

	err = req(ctx)
	b.record(generation, b.settings.IsSuccessful(err))
	return err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Now())
	switch {
	case b.state == StateOpen:
		return b.generation, ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return b.generation, ErrTooManyRequests
	}
	b.counts.Requests++
	return b.generation, nil
}

// record applies an outcome. Outcomes from an earlier generation are
// dropped.
func (b *Breaker) record(generation uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	b.advance(now)
	if generation != b.generation {
		return
	}

	c := &b.counts
	if success {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && c.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.transition(StateClosed, now)
		}
		return
	}

	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
	switch b.state {
	case StateClosed:
		if b.settings.ReadyToTrip(*c) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// advance applies time-driven changes: closed counts expire, an open
// breaker becomes half-open. mu must be held.
func (b *Breaker) advance(now time.Time) {
	if b.expiry.IsZero() || now.Before(b.expiry) {
		return
	}
	switch b.state {
	case StateClosed:
		b.resetGeneration(now)
	case StateOpen:
		b.transition(StateHalfOpen, now)
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.resetGeneration(now)

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) resetGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}

	switch b.state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	default:
		b.expiry = time.Time{}
	}
}
