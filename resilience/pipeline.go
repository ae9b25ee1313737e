package resilience

import (
	"context"
	"time"
)

// Settings configures one composed pipeline. Zero values fall back to the
// per-stage defaults.
type Settings struct {
	// Kind selects the error-classification table for retry and breaker
	// decisions.
	Kind BackendKind

	// Timeout is the total wall-clock budget, retries included.
	Timeout time.Duration

	// RetryCount is the number of retries after the initial attempt.
	RetryCount int

	// RetryDelays is the per-attempt delay table; DefaultRetryDelay
	// covers attempts past the end of the table.
	RetryDelays       []time.Duration
	DefaultRetryDelay time.Duration

	// Circuit breaker tuning.
	FailureRatio      float64
	SamplingDuration  time.Duration
	MinimumThroughput int
	BreakDuration     time.Duration

	// MaxConcurrent caps in-flight calls. 0 disables the bulkhead.
	MaxConcurrent int
}

// Hooks receive observational notifications from a pipeline. They must
// not block; they never affect control flow.
type Hooks struct {
	// OnRetry fires before each retry attempt.
	OnRetry func(key string, attempt int, err error, delay time.Duration)

	// OnStateChange fires on circuit breaker transitions.
	OnStateChange func(key string, from, to State)
}

// Operation is a unit of work executed through a pipeline.
type Operation func(context.Context) error

// Pipeline composes Timeout, Retry, CircuitBreaker and an optional
// Bulkhead around an operation, in that outer-to-inner order. The timeout
// bounds everything including retries; the breaker observes individual
// attempts; the bulkhead caps what actually reaches the backend.
//
// A pipeline is stateless once built except for its breaker and bulkhead
// counters, and is safe for concurrent use by any number of callers.
type Pipeline struct {
	key      string
	settings Settings

	timeout  *Timeout
	retry    *Retry
	breaker  *CircuitBreaker
	bulkhead *Bulkhead
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	hooks Hooks
}

// WithHooks attaches observational hooks to the pipeline.
func WithHooks(hooks Hooks) PipelineOption {
	return func(o *pipelineOptions) {
		o.hooks = hooks
	}
}

// NewPipeline builds a pipeline for the given key. Building is cheap and
// side-effect-free, so a registry may race two builds and discard one.
func NewPipeline(key string, settings Settings, opts ...PipelineOption) *Pipeline {
	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}

	isTransient := Classifier(settings.Kind)

	var onRetry func(int, error, time.Duration)
	if o.hooks.OnRetry != nil {
		hook := o.hooks.OnRetry
		onRetry = func(attempt int, err error, delay time.Duration) {
			hook(key, attempt, err, delay)
		}
	}

	var onStateChange func(State, State)
	if o.hooks.OnStateChange != nil {
		hook := o.hooks.OnStateChange
		onStateChange = func(from, to State) {
			hook(key, from, to)
		}
	}

	p := &Pipeline{
		key:      key,
		settings: settings,
		timeout:  NewTimeout(TimeoutConfig{Timeout: settings.Timeout}),
		retry: NewRetry(RetryConfig{
			RetryCount:   settings.RetryCount,
			Delays:       settings.RetryDelays,
			DefaultDelay: settings.DefaultRetryDelay,
			RetryIf:      isTransient,
			OnRetry:      onRetry,
		}),
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			FailureRatio:      settings.FailureRatio,
			SamplingDuration:  settings.SamplingDuration,
			MinimumThroughput: settings.MinimumThroughput,
			BreakDuration:     settings.BreakDuration,
			OnStateChange:     onStateChange,
			IsFailure:         isTransient,
		}),
	}

	if settings.MaxConcurrent > 0 {
		p.bulkhead = NewBulkhead(BulkheadConfig{MaxConcurrent: settings.MaxConcurrent})
	}

	return p
}

// Execute runs op through the composed stages.
func (p *Pipeline) Execute(ctx context.Context, op Operation) error {
	attempt := func(ctx context.Context) error {
		return p.breaker.Execute(ctx, func(ctx context.Context) error {
			if p.bulkhead != nil {
				return p.bulkhead.Execute(ctx, op)
			}
			return op(ctx)
		})
	}

	return p.timeout.Execute(ctx, func(ctx context.Context) error {
		return p.retry.Execute(ctx, attempt)
	})
}

// Key returns the pipeline key.
func (p *Pipeline) Key() string {
	return p.key
}

// Settings returns the settings the pipeline was built with.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// CircuitState returns the current breaker state.
func (p *Pipeline) CircuitState() State {
	return p.breaker.State()
}
