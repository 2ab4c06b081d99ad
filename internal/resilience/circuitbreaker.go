package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront-bff/internal/telemetry"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after threshold consecutive failures. Once timeout has
// passed it lets a single trial call through; the trial's outcome closes or
// re-opens the circuit.
type CircuitBreaker struct {
	mu            sync.Mutex
	name          string
	state         State
	failureCount  int
	lastErrorTime time.Time
	threshold     int
	timeout       time.Duration
	now           func() time.Time
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
	telemetry.CircuitState(name, int(StateClosed))
	return cb
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Execute(action func() (any, error)) (any, error) {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastErrorTime) > cb.timeout {
			cb.setState(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return nil, ErrCircuitOpen
		}
	case StateHalfOpen:
		// A trial call is already in flight.
		cb.mu.Unlock()
		return nil, ErrCircuitOpen
	}

	cb.mu.Unlock()

	result, err := action()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastErrorTime = cb.now()

		if cb.failureCount >= cb.threshold || cb.state == StateHalfOpen {
			cb.setState(StateOpen)
			slog.Warn("Circuit Breaker OPENED", "name", cb.name, "failures", cb.failureCount)
		}
		return nil, err
	}

	if cb.state == StateHalfOpen {
		slog.Info("Circuit Breaker RECOVERED", "name", cb.name)
	}
	cb.failureCount = 0
	cb.setState(StateClosed)

	return result, nil
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	telemetry.CircuitState(cb.name, int(s))
}
