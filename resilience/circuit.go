package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is failing fast without executing calls.
	StateOpen
	// StateHalfOpen means the circuit is allowing a single trial call.
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

// windowBuckets is the resolution of the rolling sampling window.
const windowBuckets = 10

// CircuitBreakerConfig configures the failure-ratio circuit breaker.
type CircuitBreakerConfig struct {
	// FailureRatio is the failure fraction (0-1) that opens the circuit.
	// Default: 0.5
	FailureRatio float64

	// SamplingDuration is the width of the rolling window over which the
	// failure ratio is computed. Default: 30 seconds
	SamplingDuration time.Duration

	// MinimumThroughput is the number of calls that must be observed in
	// the window before the circuit may open. Default: 10
	MinimumThroughput int

	// BreakDuration is how long the circuit stays open before allowing a
	// trial call. Default: 30 seconds
	BreakDuration time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker opens after the failure ratio over a rolling window
// crosses the configured threshold, fails fast while open, and probes
// with a single trial call after the break duration elapses.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	bucketWidth time.Duration

	mu            sync.Mutex
	state         State
	buckets       [windowBuckets]bucket
	current       int
	openedAt      time.Time
	probeInFlight bool
}

type bucket struct {
	start     time.Time
	successes int
	failures  int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureRatio <= 0 || config.FailureRatio > 1 {
		config.FailureRatio = 0.5
	}
	if config.SamplingDuration <= 0 {
		config.SamplingDuration = 30 * time.Second
	}
	if config.MinimumThroughput <= 0 {
		config.MinimumThroughput = 10
	}
	if config.BreakDuration <= 0 {
		config.BreakDuration = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config:      config,
		bucketWidth: config.SamplingDuration / windowBuckets,
		state:       StateClosed,
	}
}

// Execute runs the operation through the circuit breaker. While open it
// returns ErrCircuitOpen without invoking op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked(time.Now())
}

// Reset closes the circuit and clears the sampling window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.setStateLocked(StateClosed)
	cb.resetWindowLocked()

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	switch cb.currentStateLocked(now) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probeInFlight {
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	isFailure := cb.config.IsFailure(err)
	// An attempt torn down by its own caller says nothing about the
	// backend, so it counts as neither success nor failure. Otherwise a
	// cancellation storm would dilute the failure ratio and hold a
	// failing circuit closed.
	cancelled := !isFailure && errors.Is(err, context.Canceled)
	oldState := cb.currentStateLocked(now)

	switch oldState {
	case StateClosed:
		if cancelled {
			return
		}
		cb.recordLocked(now, isFailure)
		total, failures := cb.windowCountsLocked(now)
		if total >= cb.config.MinimumThroughput &&
			float64(failures)/float64(total) >= cb.config.FailureRatio {
			cb.setStateLocked(StateOpen)
			cb.openedAt = now
		}

	case StateHalfOpen:
		cb.probeInFlight = false
		switch {
		case cancelled:
			// Inconclusive trial: stay half-open and allow another.
		case isFailure:
			// Failed probe: reopen and restart the break timer.
			cb.setStateLocked(StateOpen)
			cb.openedAt = now
		default:
			cb.setStateLocked(StateClosed)
			cb.resetWindowLocked()
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, cb.state)
	}
}

// currentStateLocked advances Open to HalfOpen once the break elapses.
func (cb *CircuitBreaker) currentStateLocked(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.config.BreakDuration {
		cb.setStateLocked(StateHalfOpen)
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	cb.state = state
	if state == StateHalfOpen {
		cb.probeInFlight = false
	}
}

func (cb *CircuitBreaker) recordLocked(now time.Time, isFailure bool) {
	b := &cb.buckets[cb.current]
	if b.start.IsZero() || now.Sub(b.start) >= cb.bucketWidth {
		cb.current = (cb.current + 1) % windowBuckets
		b = &cb.buckets[cb.current]
		b.start = now
		b.successes = 0
		b.failures = 0
	}
	if isFailure {
		b.failures++
	} else {
		b.successes++
	}
}

func (cb *CircuitBreaker) windowCountsLocked(now time.Time) (total, failures int) {
	cutoff := now.Add(-cb.config.SamplingDuration)
	for i := range cb.buckets {
		b := &cb.buckets[i]
		if b.start.IsZero() || b.start.Before(cutoff) {
			continue
		}
		total += b.successes + b.failures
		failures += b.failures
	}
	return total, failures
}

func (cb *CircuitBreaker) resetWindowLocked() {
	for i := range cb.buckets {
		cb.buckets[i] = bucket{}
	}
	cb.current = 0
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	total, failures := cb.windowCountsLocked(now)
	return CircuitBreakerMetrics{
		State:     cb.currentStateLocked(now),
		WindowLen: total,
		Failures:  failures,
		OpenedAt:  cb.openedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State     State
	WindowLen int
	Failures  int
	OpenedAt  time.Time
}
