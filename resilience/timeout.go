package resilience

import (
	"context"
	"time"
)

// TimeoutConfig configures the timeout stage.
type TimeoutConfig struct {
	// Timeout is the hard wall-clock budget for the whole call,
	// retries included. Inner per-attempt timeouts must be shorter.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds the total duration of an operation.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout stage.
func NewTimeout(config TimeoutConfig) *Timeout {
	// Apply defaults
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs the operation under the wall-clock budget. On expiry the
// inner context is cancelled and ErrTimeout is returned; the abandoned
// goroutine unwinds on its own once the operation observes cancellation.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
