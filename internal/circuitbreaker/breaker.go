package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nuruhealth/nurugw/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and requests are allowed.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and requests are rejected.
	StateOpen

	// StateHalfOpen indicates the circuit is testing if the upstream recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open probe budget is exhausted.
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Outcome reports the result of an admitted call back to the breaker
// that issued it. Reports are bound to the breaker generation active at
// admission time; a report that arrives after a state change is ignored.
type Outcome func(success bool)

// CircuitBreaker implements the circuit breaker pattern over a rolling
// window of the most recent call outcomes. While closed it records every
// outcome into a ring buffer of size WindowSize; once at least MinCalls
// outcomes are recorded and the failure ratio reaches the threshold, the
// circuit opens. After OpenStateWait it admits up to HalfOpenMaxCalls
// concurrent probes; SuccessThreshold consecutive probe successes close
// the circuit, any probe failure reopens it and restarts the wait.
type CircuitBreaker struct {
	name   string
	config *Config
	logger observability.Logger

	mu    sync.Mutex
	state State

	// generation increments on every state change and window reset.
	// Outcome reports from an older generation are stragglers and do
	// not touch the window or the probe counters.
	generation uint64

	// Rolling window of outcomes, true marks a failure. head points at
	// the slot the next outcome overwrites.
	outcomes []bool
	head     int
	recorded int
	failures int

	// Half-open probe tracking.
	halfOpenInflight  int
	halfOpenSuccesses int

	lastStateChange time.Time

	now func() time.Time
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, config *Config, logger observability.Logger, opts ...Option) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	cb := &CircuitBreaker{
		name:     name,
		config:   config,
		logger:   logger,
		state:    StateClosed,
		outcomes: make([]bool, config.WindowSize),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.lastStateChange = cb.now()
	RecordState(name, StateClosed)
	return cb
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn under circuit breaker protection. When the circuit is
// open it returns ErrCircuitOpen without invoking fn; when the half-open
// probe budget is exhausted it returns ErrTooManyRequests.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	done, err := cb.Allow()
	if err != nil {
		return err
	}

	err = fn()
	done(cb.isSuccessful(err))

	return err
}

// ExecuteWithFallback runs fn under circuit breaker protection and invokes
// fallback when the call is short-circuited.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func() error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

// Allow checks whether a call may proceed. A nil error means the caller
// must report the outcome through the returned Outcome exactly once.
func (cb *CircuitBreaker) Allow() (Outcome, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var err error

	switch cb.state {
	case StateClosed:
		// allowed

	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.OpenStateWait {
			cb.transitionTo(StateHalfOpen)
			cb.halfOpenInflight = 1
		} else {
			err = ErrCircuitOpen
		}

	case StateHalfOpen:
		if cb.halfOpenInflight < cb.config.HalfOpenMaxCalls {
			cb.halfOpenInflight++
		} else {
			err = ErrTooManyRequests
		}

	default:
		err = ErrCircuitOpen
	}

	RecordRequest(cb.name, err == nil)
	if err != nil {
		return nil, err
	}

	gen := cb.generation
	return func(success bool) {
		cb.recordOutcome(gen, success)
	}, nil
}

// recordOutcome applies an admitted call's result. The generation check
// keeps stragglers from calls admitted before a state change out of the
// fresh window and the half-open probe counters.
func (cb *CircuitBreaker) recordOutcome(gen uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}

	if success {
		RecordSuccess(cb.name)
	} else {
		RecordFailure(cb.name)
	}

	switch cb.state {
	case StateClosed:
		cb.record(!success)
		if !success && cb.shouldOpen() {
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		if cb.halfOpenInflight > 0 {
			cb.halfOpenInflight--
		}
		if success {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.config.SuccessThreshold {
				cb.transitionTo(StateClosed)
			}
		} else {
			// Any probe failure reopens the circuit and restarts the wait.
			cb.transitionTo(StateOpen)
		}
	}
}

// record appends an outcome to the rolling window, evicting the oldest
// outcome once the window is full.
func (cb *CircuitBreaker) record(failure bool) {
	if cb.recorded == len(cb.outcomes) {
		if cb.outcomes[cb.head] {
			cb.failures--
		}
	} else {
		cb.recorded++
	}
	cb.outcomes[cb.head] = failure
	cb.head = (cb.head + 1) % len(cb.outcomes)
	if failure {
		cb.failures++
	}
}

// shouldOpen reports whether the failure rate over the window warrants
// opening the circuit. Callers must hold cb.mu.
func (cb *CircuitBreaker) shouldOpen() bool {
	if cb.recorded < cb.config.MinCalls {
		return false
	}
	ratio := float64(cb.failures) / float64(cb.recorded)
	return ratio >= cb.config.FailureRateThreshold
}

// transitionTo moves the circuit breaker to a new state. Callers must
// hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()

	cb.resetWindow()
	cb.halfOpenInflight = 0
	cb.halfOpenSuccesses = 0

	RecordStateChange(cb.name, oldState, newState)

	cb.logger.Info("circuit breaker state changed",
		observability.String("name", cb.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

// resetWindow clears the rolling window and starts a new generation,
// invalidating outstanding Outcome reports. Callers must hold cb.mu.
func (cb *CircuitBreaker) resetWindow() {
	cb.generation++
	for i := range cb.outcomes {
		cb.outcomes[i] = false
	}
	cb.head = 0
	cb.recorded = 0
	cb.failures = 0
}

// isSuccessful determines whether the error counts as a success.
func (cb *CircuitBreaker) isSuccessful(err error) bool {
	if cb.config.IsSuccessful != nil {
		return cb.config.IsSuccessful(err)
	}
	return err == nil
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit breaker back to closed with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateClosed {
		cb.transitionTo(StateClosed)
		return
	}
	cb.resetWindow()
}

// Stats holds a snapshot of circuit breaker counters.
type Stats struct {
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Recorded    int     `json:"recorded"`
	Failures    int     `json:"failures"`
	FailureRate float64 `json:"failureRate"`
}

// Stats returns a snapshot of the circuit breaker counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var rate float64
	if cb.recorded > 0 {
		rate = float64(cb.failures) / float64(cb.recorded)
	}
	return Stats{
		Name:        cb.name,
		State:       cb.state.String(),
		Recorded:    cb.recorded,
		Failures:    cb.failures,
		FailureRate: rate,
	}
}
