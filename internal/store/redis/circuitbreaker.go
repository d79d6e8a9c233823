package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it. Callers treat it as "Redis is down, buffer the write".
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the circuit breaker state.
type State int

const (
	StateClosed   State = iota // writes pass through normally
	StateOpen                  // writes rejected until the reset timeout elapses
	StateHalfOpen              // one probe write allowed through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker shields the publisher from a struggling Redis. It opens
// after maxFailures consecutive write errors so a dead broker costs one
// rejected call instead of a pipeline timeout per event. After resetTimeout
// it lets a single probe through: success closes the breaker, failure
// reopens it and restarts the timer.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	// Invoked on every transition, with the breaker lock held. Callbacks
	// must not call back into the breaker.
	OnStateChange func(from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// Execute runs fn unless the breaker is open. Returns ErrCircuitOpen when
// the call is rejected, otherwise fn's error.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow decides whether the next call may proceed, moving an expired open
// breaker to half-open. The mutex serializes callers, so at most one probe
// runs in the half-open state.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.openedAt) <= cb.resetTimeout {
			cb.mu.Unlock()
			return false
		}
		cb.setState(StateHalfOpen)
	}
	cb.mu.Unlock()
	return true
}

// record applies the call outcome to the breaker state.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		cb.mu.Unlock()
		return
	}

	cb.failures++
	cb.openedAt = time.Now()
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.setState(StateOpen)
	}
	cb.mu.Unlock()
}

// setState transitions and fires the callback. Called with mu held.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
