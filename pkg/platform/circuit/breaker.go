// Package circuit provides a consecutive-failure circuit breaker with a
// cooldown before probing the dependency again.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow normally.
	StateClosed State = iota
	// StateOpen means calls are rejected until the cooldown elapses.
	StateOpen
	// StateHalfOpen means one probe call is in flight.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker opens after FailureThreshold consecutive failures. Once open it
// rejects calls for the cooldown, then lets a single probe through: a
// successful probe closes the circuit, a failed one reopens it.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	now              func() time.Time
	onChange         func(name string, from, to State)
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures that open the
// circuit. Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open. Default is 30s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithStateChange registers a callback for state transitions. It runs with
// the breaker lock held and must not call back into the breaker.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed and whether it is the half-open
// probe. An open circuit whose cooldown elapsed moves to half-open and admits
// exactly one caller.
func (b *Breaker) Allow() (ok, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, false
		}
		b.transition(StateHalfOpen)
		return true, true
	default:
		return false, false
	}
}

// ReleaseProbe gives back the half-open slot of a probe that ended without a
// verdict on the dependency. The cooldown is not restarted, so the next caller
// probes again.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.transition(StateOpen)
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.open()
		}
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onChange != nil && from != to {
		b.onChange(b.name, from, to)
	}
}
