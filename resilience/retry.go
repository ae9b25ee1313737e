package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry stage.
type RetryConfig struct {
	// RetryCount is the maximum number of retries after the initial
	// attempt. Default: 3
	RetryCount int

	// Delays holds the delay before retry i (0-indexed). When the table
	// is shorter than RetryCount, DefaultDelay covers the remainder.
	Delays []time.Duration

	// DefaultDelay is used when Delays is exhausted.
	// Default: 1 second
	DefaultDelay time.Duration

	// RetryIf decides whether an error is worth another attempt.
	// Default: never retry (a retry stage without a classifier is inert).
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt. Observational only.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-executes an operation on transient failure, reading delays
// from a precomputed table and jittering each by ±25% so fleets of
// processes do not retry in lockstep.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry stage.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.DefaultDelay <= 0 {
		config.DefaultDelay = time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return false }
	}

	return &Retry{config: config}
}

// Execute runs the operation with retries. Exhausting the budget returns
// the last error unchanged; callers see the original classified failure,
// not a wrapper.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.RetryCount; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.RetryCount {
			break
		}

		delay := r.delayFor(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// delayFor reads the delay table for attempt (0-indexed) and applies
// jitter in the 0.75..1.25 range.
func (r *Retry) delayFor(attempt int) time.Duration {
	base := r.config.DefaultDelay
	if attempt < len(r.config.Delays) {
		base = r.config.Delays[attempt]
	}
	if base <= 0 {
		return 0
	}

	// #nosec G404 -- jitter is non-cryptographic timing variance.
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(base) * factor)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
