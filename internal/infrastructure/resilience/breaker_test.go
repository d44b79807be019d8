package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

func run(b *Breaker, success bool) error {
	return b.Execute(context.Background(), func(context.Context) error {
		if success {
			return nil
		}
		return errFailed
	})
}

// clock is a manually advanced time source.
type clock struct {
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		tripAfter     uint32
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", 3, []bool{true, true, true}, StateClosed},
		{"opens after consecutive failures", 3, []bool{false, false, false}, StateOpen},
		{"success resets the failure streak", 2, []bool{false, true, false}, StateClosed},
		{"single failure trips at one", 1, []bool{true, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", Settings{ReadyToTrip: TripAfter(tt.tripAfter)})
			for _, success := range tt.requests {
				_ = run(breaker, success)
			}
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{})

	require.NoError(t, run(breaker, true))

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)

	assert.ErrorIs(t, run(breaker, false), errFailed)

	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{
		Interval:    time.Minute,
		ReadyToTrip: TripAfter(2),
		Now:         clk.Now,
	})

	_ = run(breaker, false)
	clk.Advance(2 * time.Minute)
	_ = run(breaker, false)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerIsSuccessful(t *testing.T) {
	breaker := New("test", Settings{
		ReadyToTrip: TripAfter(1),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	err := breaker.Execute(context.Background(), func(context.Context) error {
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())

	_ = run(breaker, false)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerSkipsDoneContext(t *testing.T) {
	breaker := New("test", Settings{ReadyToTrip: TripAfter(1)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := breaker.Execute(ctx, func(context.Context) error {
		called = true
		return errFailed
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, uint32(0), breaker.Counts().Requests)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerOpenState(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{
		Timeout:     time.Minute,
		ReadyToTrip: TripAfter(2),
		Now:         clk.Now,
	})

	for i := 0; i < 2; i++ {
		_ = run(breaker, false)
	}
	assert.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "request must not run while open")

	snap := breaker.Snapshot()
	assert.Equal(t, "open", snap.State)
	require.NotNil(t, snap.RetryAt)
	assert.Equal(t, clk.Now().Add(time.Minute), *snap.RetryAt)
}

func TestBreakerHalfOpenState(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{
		MaxRequests: 2,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: TripAfter(2),
		Now:         clk.Now,
	})

	for i := 0; i < 2; i++ {
		_ = run(breaker, false)
	}
	assert.Equal(t, StateOpen, breaker.State())

	clk.Advance(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())
	assert.Nil(t, breaker.Snapshot().RetryAt)

	for i := 0; i < 2; i++ {
		require.NoError(t, run(breaker, true))
	}
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{
		Timeout:     time.Second,
		ReadyToTrip: TripAfter(1),
		Now:         clk.Now,
	})

	_ = run(breaker, false)
	clk.Advance(2 * time.Second)

	err := breaker.Execute(context.Background(), func(context.Context) error {
		// A second caller arrives while the trial is in flight.
		assert.ErrorIs(t, run(breaker, true), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: TripAfter(1),
		Now:         clk.Now,
	})

	_ = run(breaker, false)
	clk.Advance(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = run(breaker, false)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerCallbacks(t *testing.T) {
	clk := newClock()
	var transitions []string

	breaker := New("sandbox", Settings{
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: TripAfter(2),
		Now:         clk.Now,
		OnStateChange: func(name string, from State, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 2; i++ {
		_ = run(breaker, false)
	}

	clk.Advance(20 * time.Millisecond)
	require.NoError(t, run(breaker, true))

	assert.Equal(t, []string{
		"sandbox:closed->open",
		"sandbox:open->half-open",
		"sandbox:half-open->closed",
	}, transitions)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{ReadyToTrip: TripAfter(1)})

	assert.Panics(t, func() {
		_ = breaker.Execute(context.Background(), func(context.Context) error {
			panic("sandbox crashed")
		})
	})
	assert.Equal(t, StateOpen, breaker.State())
}
