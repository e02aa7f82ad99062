package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is shedding publishes.
var ErrCircuitOpen = errors.New("redis circuit breaker open")

// State is the breaker position. The numeric values feed the
// circuit-breaker state gauge directly.
type State int

const (
	StateClosed   State = 0 // publishes flow to Redis
	StateOpen     State = 1 // publishes shed until the cooldown elapses
	StateHalfOpen State = 2 // one probe publish in flight
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

// CircuitBreaker sheds Redis publishes while the server is unreachable so
// telemetry failures never stall the bar pipeline. After maxFailures
// consecutive publish errors it opens; once cooldown elapses a single
// probe publish is let through, and its outcome decides between closing
// and reopening.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	trips    int

	maxFailures int
	cooldown    time.Duration

	// OnStateChange observes transitions; the trader uses it to log and
	// update the breaker gauges. Optional, called with mu held.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// consecutive errors and probes again after cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, cooldown: cooldown}
}

// Execute runs one publish through the breaker. While open and inside the
// cooldown it returns ErrCircuitOpen without calling fn; callers drop the
// write, they never queue it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// allow decides whether this publish may go to Redis, moving the breaker
// to half-open when the cooldown has elapsed. Only one probe runs at a
// time; concurrent publishers keep shedding until it resolves.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) <= cb.cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
		return nil
	default: // StateHalfOpen
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	}
}

// record folds the publish outcome back into the breaker.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.probing
	cb.probing = false

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures++
	if wasProbe && cb.state == StateHalfOpen {
		cb.trip()
		return
	}
	if cb.state == StateClosed && cb.failures >= cb.maxFailures {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	cb.trips++
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// CurrentState returns the breaker position.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Trips returns how many times the breaker has opened since start.
func (cb *CircuitBreaker) Trips() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.trips
}
